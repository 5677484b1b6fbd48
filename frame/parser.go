// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

import "strings"

// HeaderType is the scalar type a header value is validated against.
type HeaderType int

const (
	TypeInteger HeaderType = iota
)

func (t HeaderType) String() string {
	switch t {
	case TypeInteger:
		return "int"
	}
	return "unknown"
}

// ValidationTable maps header names to the type their value must have.
type ValidationTable map[string]HeaderType

// DefaultValidationTable returns the table used by NewHeaderParser.
func DefaultValidationTable() ValidationTable {
	return ValidationTable{
		ContentLength: TypeInteger,
	}
}

// HeaderParser accumulates the header block of one inbound frame, one
// raw line at a time. Reset must be called before each new frame.
type HeaderParser struct {
	headers    *Header
	validation ValidationTable
}

func NewHeaderParser() *HeaderParser {
	return NewHeaderParserWithValidation(DefaultValidationTable())
}

func NewHeaderParserWithValidation(table ValidationTable) *HeaderParser {
	p := &HeaderParser{validation: table}
	p.Reset()
	return p
}

// Reset discards the headers collected so far.
func (p *HeaderParser) Reset() {
	p.headers = NewHeader()
}

// HeaderCount returns the number of headers accepted since the last Reset.
func (p *HeaderParser) HeaderCount() int {
	return p.headers.Len()
}

// ParseLine parses a single "key:value" header line. Repeated keys are
// silently dropped so the first occurrence stays authoritative.
func (p *HeaderParser) ParseLine(line string) error {
	line = TrimLineEnding(line)

	idx := strings.IndexByte(line, colon)
	if idx < 0 {
		return ErrMalformedHeader
	}
	rawKey, rawValue := line[:idx], line[idx+1:]
	if len(rawKey) == 0 {
		return ErrMalformedHeader
	}

	key := DecodeHeaderString(rawKey)
	value := DecodeHeaderString(rawValue)

	if p.headers.Contains(key) {
		return nil
	}

	if typ, ok := p.validation[key]; ok && !validate(typ, value) {
		return &HeaderValidationError{Key: key, Type: typ}
	}

	p.headers.Set(key, value)
	return nil
}

// Finalize returns the collected headers. Clients that skipped version
// negotiation get accept-version 1.0.
func (p *HeaderParser) Finalize() *Header {
	p.headers.Set(AcceptVersion, DefaultVersion)
	return p.headers
}

func validate(typ HeaderType, value string) bool {
	switch typ {
	case TypeInteger:
		return isDigits(value)
	}
	return false
}

func isDigits(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
