// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"net"
)

type tcpConnectionListener struct {
	listener net.Listener
}

func NewTcpConnectionListener(addr string) (RawConnectionListener, error) {
	tcpListener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpConnectionListener{listener: tcpListener}, nil
}

// Addr returns the address the listener is bound to.
func (l *tcpConnectionListener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *tcpConnectionListener) Accept() (RawConnection, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}
	return newStreamConnection(conn, conn.RemoteAddr().String()), nil
}

func (l *tcpConnectionListener) Close() error {
	return l.listener.Close()
}
