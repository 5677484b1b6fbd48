// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmware/stompengine/sink"
)

type MockRawConnectionListener struct {
	incomingConnections chan interface{}
	closed              chan struct{}
}

func NewMockRawConnectionListener() *MockRawConnectionListener {
	return &MockRawConnectionListener{
		incomingConnections: make(chan interface{}),
		closed:              make(chan struct{}),
	}
}

func (cl *MockRawConnectionListener) Accept() (RawConnection, error) {
	select {
	case obj := <-cl.incomingConnections:
		if mockConn, ok := obj.(*MockRawConnection); ok {
			return mockConn, nil
		}
		return nil, obj.(error)
	case <-cl.closed:
		return nil, net.ErrClosed
	}
}

func (cl *MockRawConnectionListener) Close() error {
	select {
	case <-cl.closed:
	default:
		close(cl.closed)
	}
	return nil
}

func newTestStompServer(config StompConfig) (*stompServer, *MockRawConnectionListener) {
	listener := NewMockRawConnectionListener()
	return NewStompServer(listener, config, nil, nil).(*stompServer), listener
}

func waitForEvent(t *testing.T, events chan *ConnEvent) *ConnEvent {
	select {
	case e := <-events:
		return e
	case <-time.After(5 * time.Second):
		require.Fail(t, "timed out waiting for connection event")
		return nil
	}
}

func TestStompServer_ConnectionEvents(t *testing.T) {
	server, listener := newTestStompServer(nil)

	events := make(chan *ConnEvent, 8)
	for _, eventType := range []StompSessionEventType{ConnectionStarting, ConnectionEstablished, ConnectionClosed} {
		server.SetConnectionEventCallback(eventType, func(e *ConnEvent) {
			events <- e
		})
	}

	go server.Start()
	defer server.Stop()

	// a failed accept does not stop the accept loop
	listener.incomingConnections <- errors.New("accept-error")

	conn := NewMockRawConnection(connectFrame + "DISCONNECT\n\n\x00\n")
	listener.incomingConnections <- conn

	starting := waitForEvent(t, events)
	assert.Equal(t, ConnectionStarting, starting.eventType)
	assert.Equal(t, "mock:1234", starting.Remote)

	established := waitForEvent(t, events)
	assert.Equal(t, ConnectionEstablished, established.eventType)
	assert.Equal(t, starting.ConnId, established.ConnId)

	closedEvent := waitForEvent(t, events)
	assert.Equal(t, ConnectionClosed, closedEvent.eventType)
	assert.Equal(t, starting.ConnId, closedEvent.ConnId)
	assert.True(t, conn.IsClosed())

	stats := server.Stats()
	assert.Equal(t, int64(1), stats.Accepted)
	assert.Equal(t, int64(0), stats.ActiveConnections)
	assert.Equal(t, int64(2), stats.FramesReceived)
	assert.Equal(t, int64(0), stats.Faults)
}

func TestStompServer_FaultsAreCounted(t *testing.T) {
	server, listener := newTestStompServer(nil)

	events := make(chan *ConnEvent, 8)
	server.SetConnectionEventCallback(ConnectionClosed, func(e *ConnEvent) {
		events <- e
	})

	go server.Start()
	defer server.Stop()

	listener.incomingConnections <- NewMockRawConnection("SEND\ndestination:/a\n\n\x00\n")
	waitForEvent(t, events)

	assert.Equal(t, int64(1), server.Stats().Faults)
}

func TestStompServer_StopClosesConnections(t *testing.T) {
	server, listener := newTestStompServer(nil)

	established := make(chan *ConnEvent, 1)
	server.SetConnectionEventCallback(ConnectionEstablished, func(e *ConnEvent) {
		established <- e
	})

	stopped := make(chan struct{})
	go func() {
		server.Start()
		close(stopped)
	}()

	pr, pw := io.Pipe()
	conn := NewMockRawConnectionFromReader(pr)
	listener.incomingConnections <- conn

	_, err := pw.Write([]byte(connectFrame))
	require.NoError(t, err)
	waitForEvent(t, established)

	server.Stop()
	// stopping twice is harmless
	server.Stop()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		require.Fail(t, "server did not stop")
	}

	assert.Eventually(t, conn.IsClosed, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		select {
		case <-listener.closed:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStompServer_TcpClient(t *testing.T) {
	listener, err := NewTcpConnectionListener("127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.(*tcpConnectionListener).Addr().String()

	bus := sink.NewBusSink()
	sub := bus.Subscribe("/queue/test", 4)

	config := NewDefaultStompConfig()
	server := NewStompServer(listener, config, NewProtocolHandler(config, nil, bus), nil)
	go server.Start()
	defer server.Stop()

	conn, err := stomp.Dial("tcp", addr, stomp.ConnOpt.Login("system", "manager"))
	require.NoError(t, err)
	assert.Equal(t, stomp.V12, conn.Version())
	assert.NotEmpty(t, conn.Session())

	require.NoError(t, conn.Send("/queue/test", "text/plain", []byte("hello:world\n")))

	select {
	case msg := <-sub.C:
		assert.Equal(t, "/queue/test", msg.Destination)
		assert.Equal(t, []byte("hello:world\n"), msg.Body)
	case <-time.After(5 * time.Second):
		require.Fail(t, "message was not delivered")
	}

	assert.NoError(t, conn.Disconnect())
}

func TestStompServer_TcpClientBadCredentials(t *testing.T) {
	listener, err := NewTcpConnectionListener("127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.(*tcpConnectionListener).Addr().String()

	server := NewStompServer(listener, nil, nil, nil)
	go server.Start()
	defer server.Stop()

	conn, err := stomp.Dial("tcp", addr, stomp.ConnOpt.Login("system", "wrong"))
	assert.Nil(t, conn)
	assert.Error(t, err)
}

func TestTcpConnectionListener_NewListenerInvalidAddr(t *testing.T) {
	tcpListener, err := NewTcpConnectionListener("invalid-addr")
	assert.Nil(t, tcpListener)
	assert.NotNil(t, err)
}

func TestTcpConnectionListener_AcceptAfterClose(t *testing.T) {
	listener, err := NewTcpConnectionListener("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, listener.Close())

	conn, err := listener.Accept()
	assert.Nil(t, conn)
	assert.True(t, errors.Is(err, net.ErrClosed))
}
