// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sink

import (
	"time"

	"github.com/go-stomp/stomp/v3"
	stompframe "github.com/go-stomp/stomp/v3/frame"
	"github.com/pkg/errors"
)

type stompSender interface {
	Send(destination, contentType string, body []byte, opts ...func(*stompframe.Frame) error) error
	Disconnect() error
}

// StompRelaySink forwards messages to an upstream STOMP broker.
type StompRelaySink struct {
	conn stompSender
}

// DialStompRelaySink connects to the upstream broker at addr.
func DialStompRelaySink(addr, login, passcode string) (*StompRelaySink, error) {
	conn, err := stomp.Dial("tcp", addr,
		stomp.ConnOpt.Login(login, passcode),
		stomp.ConnOpt.HeartBeat(30*time.Second, 30*time.Second))
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to upstream broker")
	}
	return NewStompRelaySink(conn), nil
}

func NewStompRelaySink(conn stompSender) *StompRelaySink {
	return &StompRelaySink{conn: conn}
}

func (s *StompRelaySink) Send(destination string, body []byte) error {
	if err := s.conn.Send(destination, "text/plain", body); err != nil {
		return errors.Wrapf(err, "unable to relay message to %s", destination)
	}
	return nil
}

func (s *StompRelaySink) Close() error {
	return s.conn.Disconnect()
}
