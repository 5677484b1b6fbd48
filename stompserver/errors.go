// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/vmware/stompengine/auth"
	"github.com/vmware/stompengine/frame"
	"github.com/vmware/stompengine/sink"
)

const (
	ErrCommandTooLong     = stompErrorMessage("the maximum command length was exceeded")
	ErrHeaderLineTooLong  = stompErrorMessage("the maximum header length was exceeded")
	ErrTooManyHeaders     = stompErrorMessage("the maximum number of headers was exceeded")
	ErrBodyTooLong        = stompErrorMessage("the maximum data length was exceeded")
	ErrMissingDestination = stompErrorMessage("missing destination header")

	// ErrLineTooLong is returned by RawConnection.ReadLine when a line
	// grows past the requested maximum before its terminator is seen.
	ErrLineTooLong = stompErrorMessage("line too long")
)

type stompErrorMessage string

func (e stompErrorMessage) Error() string {
	return string(e)
}

// UnsupportedVersionError is returned when the client and the server
// have no protocol version in common.
type UnsupportedVersionError struct {
	Supported []string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("supported protocol versions are %s", strings.Join(e.Supported, " "))
}

// SendError is returned when a SEND body could not be delivered.
type SendError struct {
	Destination string
	Err         error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("unable to send message to destination %s", e.Destination)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered while processing a frame.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprint(e.Value)
}

// FaultKind classifies err for logs and metrics labels.
func FaultKind(err error) string {
	var (
		validationErr *frame.HeaderValidationError
		versionErr    *UnsupportedVersionError
		authErr       *auth.AuthenticationError
		sendErr       *SendError
		panicErr      *PanicError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, frame.ErrMalformedHeader):
		return "malformed_header"
	case errors.As(err, &validationErr):
		return "header_validation"
	case errors.As(err, &versionErr):
		return "unsupported_version"
	case errors.As(err, &authErr):
		return "authentication_failed"
	case errors.Is(err, ErrCommandTooLong):
		return "command_too_long"
	case errors.Is(err, ErrHeaderLineTooLong):
		return "header_line_too_long"
	case errors.Is(err, ErrTooManyHeaders):
		return "too_many_headers"
	case errors.Is(err, ErrBodyTooLong):
		return "body_too_long"
	case errors.As(err, &sendErr):
		if errors.Is(err, sink.ErrDestinationNotAllowed) {
			return "destination_not_allowed"
		}
		return "send_failed"
	case errors.As(err, &panicErr):
		return "internal"
	}
	return "transport"
}

// isConnectionGone reports whether err means the peer or the server
// already closed the transport, so no ERROR frame can be delivered.
func isConnectionGone(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
