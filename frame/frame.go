// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

import (
	"bytes"
	"io"
	"strconv"
)

const (
	colon    = ':'
	newline  = '\n'
	nullByte = 0x00
)

// Frame is a single STOMP message. A frame is built once, either from a
// parsed inbound message or by the protocol handler, and must not be
// changed after it has been handed to a connection for writing.
type Frame struct {
	Command Command
	header  *Header
	body    []byte
}

// New creates a frame with the given command and alternating header
// keys and values.
func New(command Command, keyValues ...string) *Frame {
	return &Frame{
		Command: command,
		header:  NewHeader(keyValues...),
	}
}

// Decode assembles a frame from parts that were already split and parsed
// by the caller. The command line may still carry its line terminator.
func Decode(commandLine string, headers *Header, body []byte) *Frame {
	f := New(Command(TrimLineEnding(commandLine)))
	f.SetHeaders(headers)
	f.SetBody(body)
	return f
}

// SetHeaders merges headers into the frame. Keys that are already set
// keep their current value.
func (f *Frame) SetHeaders(headers *Header) {
	if headers == nil {
		return
	}
	for _, k := range headers.keys {
		f.header.Set(k, headers.values[k])
	}
}

// SetHeader sets a single header entry, first value wins.
func (f *Frame) SetHeader(key, value string) bool {
	return f.header.Set(key, value)
}

func (f *Frame) HeaderValue(key string) (string, bool) {
	return f.header.Get(key)
}

// Header returns a copy of the frame's header entries.
func (f *Frame) Header() *Header {
	return f.header.Clone()
}

func (f *Frame) Body() []byte {
	return f.body
}

// SetBody stores the body. A non-empty body also sets the content-type
// and content-length headers unless they are already present.
func (f *Frame) SetBody(body []byte) {
	f.body = body
	if len(body) > 0 {
		f.header.Set(ContentType, TextPlain)
		f.header.Set(ContentLength, strconv.Itoa(len(body)))
	}
}

// escapesHeaders reports whether header entries are escaped on the wire.
// CONNECTED is sent raw so that 1.0 clients can read it.
func (f *Frame) escapesHeaders() bool {
	return f.Command != CONNECTED
}

// Encode returns the wire representation of the frame.
func (f *Frame) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command.String())
	buf.WriteByte(newline)
	for _, k := range f.header.keys {
		v := f.header.values[k]
		if f.escapesHeaders() {
			k, v = EncodeHeaderString(k), EncodeHeaderString(v)
		}
		buf.WriteString(k)
		buf.WriteByte(colon)
		buf.WriteString(v)
		buf.WriteByte(newline)
	}
	buf.WriteByte(newline)
	buf.Write(f.body)
	buf.WriteByte(nullByte)
	buf.WriteByte(newline)
	return buf.Bytes()
}

// WriteTo writes the encoded frame to w in a single call.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Encode())
	return int64(n), err
}

func (f *Frame) String() string {
	return string(f.Encode())
}

// TrimLineEnding strips a trailing LF or CRLF from line.
func TrimLineEnding(line string) string {
	if n := len(line); n > 0 && line[n-1] == newline {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line
}
