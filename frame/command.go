// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

import (
	stompframe "github.com/go-stomp/stomp/v3/frame"
)

// Command is the first line of a STOMP frame. Commands outside the
// known set are kept verbatim so they can be ignored rather than rejected.
type Command string

// Client commands.
const (
	CONNECT     Command = stompframe.CONNECT
	STOMP       Command = stompframe.STOMP
	SEND        Command = stompframe.SEND
	SUBSCRIBE   Command = stompframe.SUBSCRIBE
	UNSUBSCRIBE Command = stompframe.UNSUBSCRIBE
	BEGIN       Command = stompframe.BEGIN
	COMMIT      Command = stompframe.COMMIT
	ABORT       Command = stompframe.ABORT
	ACK         Command = stompframe.ACK
	NACK        Command = stompframe.NACK
	DISCONNECT  Command = stompframe.DISCONNECT
)

// Server commands.
const (
	CONNECTED Command = stompframe.CONNECTED
	MESSAGE   Command = stompframe.MESSAGE
	RECEIPT   Command = stompframe.RECEIPT
	ERROR     Command = stompframe.ERROR
)

func (c Command) String() string {
	return string(c)
}

// IsClient returns true for commands a client may send.
func (c Command) IsClient() bool {
	switch c {
	case CONNECT, STOMP, SEND, SUBSCRIBE, UNSUBSCRIBE,
		BEGIN, COMMIT, ABORT, ACK, NACK, DISCONNECT:
		return true
	}
	return false
}

// IsServer returns true for commands only a server sends.
func (c Command) IsServer() bool {
	switch c {
	case CONNECTED, MESSAGE, RECEIPT, ERROR:
		return true
	}
	return false
}

func (c Command) Known() bool {
	return c.IsClient() || c.IsServer()
}
