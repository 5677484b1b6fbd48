// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package auth

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// CredentialsAuthenticator checks passcodes against a table of bcrypt
// hashes keyed by login.
type CredentialsAuthenticator struct {
	hashes map[string][]byte
}

// NewCredentialsAuthenticator builds an authenticator from login to
// bcrypt hash pairs. Every hash is checked for a valid bcrypt cost.
func NewCredentialsAuthenticator(credentials map[string]string) (*CredentialsAuthenticator, error) {
	hashes := make(map[string][]byte, len(credentials))
	for login, hash := range credentials {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, errors.Wrapf(err, "invalid bcrypt hash for login %q", login)
		}
		hashes[login] = []byte(hash)
	}
	return &CredentialsAuthenticator{hashes: hashes}, nil
}

func (a *CredentialsAuthenticator) Authenticate(login, passcode string) (string, error) {
	hash, ok := a.hashes[login]
	if !ok {
		return "", &AuthenticationError{Login: login}
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(passcode)); err != nil {
		return "", &AuthenticationError{Login: login, Err: err}
	}
	return uuid.New().String(), nil
}

// HashPasscode returns a bcrypt hash suitable for the credentials table.
func HashPasscode(passcode string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "unable to hash passcode")
	}
	return string(hash), nil
}
