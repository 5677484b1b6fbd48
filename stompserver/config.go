// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"time"

	"github.com/go-stomp/stomp/v3"
)

const (
	DefaultMaxCommandLength    = 20
	DefaultMaxHeaderCount      = 1000
	DefaultMaxHeaderLineLength = 102410
	DefaultMaxBodyLength       = int64(10241024100)
	DefaultServerName          = "stompServer/0.0.1"
)

// Limits bound the size of a single inbound frame.
type Limits struct {
	MaxCommandLength    int   `mapstructure:"max_command_length"`
	MaxHeaderCount      int   `mapstructure:"max_header_count"`
	MaxHeaderLineLength int   `mapstructure:"max_header_line_length"`
	MaxBodyLength       int64 `mapstructure:"max_body_length"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxCommandLength:    DefaultMaxCommandLength,
		MaxHeaderCount:      DefaultMaxHeaderCount,
		MaxHeaderLineLength: DefaultMaxHeaderLineLength,
		MaxBodyLength:       DefaultMaxBodyLength,
	}
}

// withDefaults replaces every non-positive limit with its default.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxCommandLength <= 0 {
		l.MaxCommandLength = d.MaxCommandLength
	}
	if l.MaxHeaderCount <= 0 {
		l.MaxHeaderCount = d.MaxHeaderCount
	}
	if l.MaxHeaderLineLength <= 0 {
		l.MaxHeaderLineLength = d.MaxHeaderLineLength
	}
	if l.MaxBodyLength <= 0 {
		l.MaxBodyLength = d.MaxBodyLength
	}
	return l
}

type StompConfig interface {
	Limits() Limits
	// SupportedVersions lists the protocol versions in ascending order.
	SupportedVersions() []stomp.Version
	IsSupportedVersion(version string) bool
	ServerName() string
	// ReadTimeout bounds the wait for a single read. Zero disables it.
	ReadTimeout() time.Duration
	// DeveloperMode enables logging of every frame in and out.
	DeveloperMode() bool
}

// StompConfigOptions are the raw values used by NewStompConfig. Zero
// values select the defaults.
type StompConfigOptions struct {
	Limits            Limits
	SupportedVersions []string
	ServerName        string
	ReadTimeout       time.Duration
	DeveloperMode     bool
}

type stompConfig struct {
	limits        Limits
	versions      []stomp.Version
	serverName    string
	readTimeout   time.Duration
	developerMode bool
}

func NewStompConfig(opts StompConfigOptions) StompConfig {
	versions := make([]stomp.Version, 0, len(opts.SupportedVersions))
	for _, v := range opts.SupportedVersions {
		versions = append(versions, stomp.Version(v))
	}
	if len(versions) == 0 {
		versions = []stomp.Version{stomp.V10, stomp.V11, stomp.V12}
	}

	serverName := opts.ServerName
	if serverName == "" {
		serverName = DefaultServerName
	}

	readTimeout := opts.ReadTimeout
	if readTimeout < 0 {
		readTimeout = 0
	}

	return &stompConfig{
		limits:        opts.Limits.withDefaults(),
		versions:      versions,
		serverName:    serverName,
		readTimeout:   readTimeout,
		developerMode: opts.DeveloperMode,
	}
}

// NewDefaultStompConfig returns a config with every option at its default.
func NewDefaultStompConfig() StompConfig {
	return NewStompConfig(StompConfigOptions{})
}

func (c *stompConfig) Limits() Limits {
	return c.limits
}

func (c *stompConfig) SupportedVersions() []stomp.Version {
	return c.versions
}

func (c *stompConfig) IsSupportedVersion(version string) bool {
	for _, v := range c.versions {
		if string(v) == version {
			return true
		}
	}
	return false
}

func (c *stompConfig) ServerName() string {
	return c.serverName
}

func (c *stompConfig) ReadTimeout() time.Duration {
	return c.readTimeout
}

func (c *stompConfig) DeveloperMode() bool {
	return c.developerMode
}
