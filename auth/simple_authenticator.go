// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package auth

import (
	"crypto/subtle"

	"github.com/google/uuid"
)

const (
	DefaultLogin    = "system"
	DefaultPasscode = "manager"
)

// SimpleAuthenticator accepts exactly one login/passcode pair.
type SimpleAuthenticator struct {
	login    string
	passcode string
}

func NewSimpleAuthenticator(login, passcode string) *SimpleAuthenticator {
	return &SimpleAuthenticator{login: login, passcode: passcode}
}

// NewDefaultAuthenticator returns a SimpleAuthenticator for system/manager.
func NewDefaultAuthenticator() *SimpleAuthenticator {
	return NewSimpleAuthenticator(DefaultLogin, DefaultPasscode)
}

func (a *SimpleAuthenticator) Authenticate(login, passcode string) (string, error) {
	loginOk := subtle.ConstantTimeCompare([]byte(login), []byte(a.login)) == 1
	passcodeOk := subtle.ConstantTimeCompare([]byte(passcode), []byte(a.passcode)) == 1
	if !loginOk || !passcodeOk {
		return "", &AuthenticationError{Login: login}
	}
	return uuid.New().String(), nil
}
