// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmware/stompengine/sink"
	"github.com/vmware/stompengine/stompserver"
	"golang.org/x/crypto/bcrypt"
)

func startServer(t *testing.T) (string, *sink.BusSink) {
	listener, err := stompserver.NewTcpConnectionListener("127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.(interface{ Addr() net.Addr }).Addr().String()

	bus := sink.NewBusSink()
	config := stompserver.NewDefaultStompConfig()
	server := stompserver.NewStompServer(listener, config, stompserver.NewProtocolHandler(config, nil, bus), nil)
	go server.Start()
	t.Cleanup(server.Stop)
	return addr, bus
}

func TestHashPasscode(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, newApp(out).Run([]string{"stompctl", "hash-passcode", "s3cret"}))

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestHashPasscode_MissingArgument(t *testing.T) {
	err := newApp(&bytes.Buffer{}).Run([]string{"stompctl", "hash-passcode"})
	assert.EqualError(t, err, "expected exactly one passcode")
}

func TestProbe(t *testing.T) {
	addr, _ := startServer(t)
	out := &bytes.Buffer{}

	require.NoError(t, newApp(out).Run([]string{"stompctl", "probe", "--addr", addr}))
	assert.Contains(t, out.String(), "server:  stompServer/0.0.1")
	assert.Contains(t, out.String(), "version: 1.2")
}

func TestProbe_OlderVersion(t *testing.T) {
	addr, _ := startServer(t)
	out := &bytes.Buffer{}

	require.NoError(t, newApp(out).Run([]string{"stompctl", "probe", "-a", addr, "--accept-version", "1.0, 1.1"}))
	assert.Contains(t, out.String(), "version: 1.1")
}

func TestProbe_BadCredentials(t *testing.T) {
	addr, _ := startServer(t)

	err := newApp(&bytes.Buffer{}).Run([]string{"stompctl", "probe", "-a", addr, "-p", "wrong"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unable to connect to "+addr)
}

func TestSend(t *testing.T) {
	addr, bus := startServer(t)
	sub := bus.Subscribe("/queue/cli", 1)
	out := &bytes.Buffer{}

	require.NoError(t, newApp(out).Run([]string{"stompctl", "send", "-a", addr, "-d", "/queue/cli", "hello"}))
	assert.Equal(t, "sent 5 bytes to /queue/cli\n", out.String())

	select {
	case msg := <-sub.C:
		assert.Equal(t, []byte("hello"), msg.Body)
	case <-time.After(5 * time.Second):
		require.Fail(t, "message was not delivered")
	}
}

func TestSend_MissingDestination(t *testing.T) {
	err := newApp(&bytes.Buffer{}).Run([]string{"stompctl", "send", "hello"})
	assert.EqualError(t, err, "a destination is required")
}
