// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

import (
	stompframe "github.com/go-stomp/stomp/v3/frame"
)

// Header names used by the engine.
const (
	AcceptVersion = stompframe.AcceptVersion
	Login         = stompframe.Login
	Passcode      = stompframe.Passcode
	Session       = stompframe.Session
	Version       = stompframe.Version
	Server        = stompframe.Server
	HeartBeat     = stompframe.HeartBeat
	Destination   = stompframe.Destination
	Receipt       = stompframe.Receipt
	ReceiptId     = stompframe.ReceiptId
	ContentType   = stompframe.ContentType
	ContentLength = stompframe.ContentLength
	Message       = stompframe.Message
)

// Common header values.
const (
	TextPlain        = "text/plain"
	DefaultHeartBeat = "0,0"
	DefaultVersion   = "1.0"
)

// Header is an ordered set of header entries where the first value
// stored for a key wins. Later writes to the same key are dropped,
// mirroring how repeated entries on the wire are treated.
type Header struct {
	keys   []string
	values map[string]string
}

// NewHeader creates a Header from alternating key and value strings.
// A trailing key without a value gets an empty value.
func NewHeader(keyValues ...string) *Header {
	h := &Header{values: make(map[string]string)}
	for i := 0; i < len(keyValues); i += 2 {
		value := ""
		if i+1 < len(keyValues) {
			value = keyValues[i+1]
		}
		h.Set(keyValues[i], value)
	}
	return h
}

// Set stores value under key unless key is already present.
// It returns true when the value was stored.
func (h *Header) Set(key, value string) bool {
	if h.values == nil {
		h.values = make(map[string]string)
	}
	if _, exists := h.values[key]; exists {
		return false
	}
	h.keys = append(h.keys, key)
	h.values[key] = value
	return true
}

func (h *Header) Get(key string) (string, bool) {
	if h == nil {
		return "", false
	}
	value, ok := h.values[key]
	return value, ok
}

func (h *Header) Contains(key string) bool {
	_, ok := h.Get(key)
	return ok
}

// Len returns the number of header entries.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.keys)
}

// Keys returns the header names in insertion order.
func (h *Header) Keys() []string {
	if h == nil {
		return nil
	}
	keys := make([]string, len(h.keys))
	copy(keys, h.keys)
	return keys
}

// Map returns a copy of the entries as a plain map.
func (h *Header) Map() map[string]string {
	m := make(map[string]string, h.Len())
	if h == nil {
		return m
	}
	for k, v := range h.values {
		m[k] = v
	}
	return m
}

func (h *Header) Clone() *Header {
	c := &Header{values: make(map[string]string, h.Len())}
	if h == nil {
		return c
	}
	for _, k := range h.keys {
		c.Set(k, h.values[k])
	}
	return c
}
