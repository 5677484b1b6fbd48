// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package sink delivers the bodies of SEND frames to their destination.
package sink

import "errors"

// MessageSink forwards a message body to a destination. Implementations
// are shared between connections and must be safe for concurrent use.
type MessageSink interface {
	Send(destination string, body []byte) error
}

var (
	ErrDestinationNotAllowed = errors.New("destination not allowed")
	ErrSinkClosed            = errors.New("message sink closed")
)
