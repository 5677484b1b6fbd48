// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

import "fmt"

type frameErrorMessage string

func (e frameErrorMessage) Error() string {
	return string(e)
}

const (
	// ErrMalformedHeader is returned for header lines without a colon
	// separator or with an empty header name.
	ErrMalformedHeader = frameErrorMessage("unable to parse header line")
)

// HeaderValidationError is returned when a header value does not match
// the type declared for its key in the validation table.
type HeaderValidationError struct {
	Key  string
	Type HeaderType
}

func (e *HeaderValidationError) Error() string {
	return fmt.Sprintf("validation error: %s is not valid to type %s", e.Key, e.Type)
}
