// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package auth

import "fmt"

// Authenticator checks the login and passcode sent with a CONNECT frame.
// On success it returns an opaque session token that is echoed back to
// the client in the session header. Implementations are shared between
// connections and must be safe for concurrent use.
type Authenticator interface {
	Authenticate(login, passcode string) (string, error)
}

// AuthenticationError is returned when a client could not be authenticated,
// either because its credentials were rejected or because it tried to use
// the session before connecting.
type AuthenticationError struct {
	Login string
	Err   error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("failed login while attempting to authenticate user %s", e.Login)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
