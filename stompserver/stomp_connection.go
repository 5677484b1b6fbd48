// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vmware/stompengine/frame"
	"github.com/vmware/stompengine/log"
)

type StompConn interface {
	// Return unique connection Id string
	GetId() string
	// Address of the remote peer
	RemoteAddr() string
	// Reads and answers frames until the connection closes
	Serve()
	Close()
}

const (
	connecting int32 = iota
	connected
	closed
)

// connDeps are the collaborators shared by every connection of a server.
type connDeps struct {
	handler *ProtocolHandler
	config  StompConfig
	metrics *Metrics
	stats   *serverStats
	events  chan *ConnEvent
	done    <-chan struct{}
}

type stompConn struct {
	rawConnection RawConnection
	reader        *FrameReader
	state         int32
	session       Session
	id            string
	deps          connDeps
	logger        *logrus.Entry
	closeOnce     sync.Once
}

// NewStompConn wraps a raw connection. Events that events cannot take
// immediately are dropped.
func NewStompConn(rawConnection RawConnection, handler *ProtocolHandler, config StompConfig, events chan *ConnEvent) StompConn {
	return newStompConn(rawConnection, connDeps{
		handler: handler,
		config:  config,
		events:  events,
	})
}

func newStompConn(rawConnection RawConnection, deps connDeps) *stompConn {
	if deps.config == nil {
		deps.config = NewDefaultStompConfig()
	}
	if deps.handler == nil {
		deps.handler = NewProtocolHandler(deps.config, nil, nil)
	}
	if deps.stats == nil {
		deps.stats = &serverStats{}
	}
	id := uuid.New().String()
	return &stompConn{
		rawConnection: rawConnection,
		reader:        NewFrameReader(rawConnection, deps.config.Limits(), deps.config.ReadTimeout()),
		state:         connecting,
		session:       NewSession(),
		id:            id,
		deps:          deps,
		logger:        log.Log.WithConnection(id, rawConnection.RemoteAddr()),
	}
}

func (conn *stompConn) GetId() string {
	return conn.id
}

func (conn *stompConn) RemoteAddr() string {
	return conn.rawConnection.RemoteAddr()
}

// Serve runs the read loop of the connection on the calling goroutine.
// It returns once the connection is closed.
func (conn *stompConn) Serve() {
	conn.deps.metrics.connectionOpened()
	defer conn.deps.metrics.connectionClosed()
	defer conn.Close()

	for {
		f, err := conn.reader.ReadFrame()
		if err != nil {
			conn.fail(err)
			return
		}

		conn.deps.metrics.frameReceived(f.Command)
		atomic.AddInt64(&conn.deps.stats.framesReceived, 1)
		if conn.deps.config.DeveloperMode() {
			conn.logger.WithField("command", f.Command.String()).Debugf("received frame:\n%s", f)
		}

		wasAuthenticated := conn.session.Authenticated
		response, session, err := conn.deps.handler.Handle(conn.session, f)
		conn.session = session
		if err != nil {
			conn.fail(err)
			return
		}

		if response != nil {
			if err := conn.write(response); err != nil {
				conn.logger.WithError(err).Debug("unable to write frame")
				return
			}
		}

		if session.Authenticated && !wasAuthenticated {
			atomic.StoreInt32(&conn.state, connected)
			conn.notify(ConnectionEstablished)
		}

		if session.MustClose {
			return
		}
	}
}

// fail writes the ERROR frame for err. Errors caused by the transport
// going away only close the connection.
func (conn *stompConn) fail(err error) {
	if atomic.LoadInt32(&conn.state) == closed || isConnectionGone(err) {
		conn.logger.WithError(err).Debug("connection closed by peer")
		return
	}

	kind := FaultKind(err)
	conn.deps.metrics.fault(err)
	atomic.AddInt64(&conn.deps.stats.faults, 1)
	conn.logger.WithError(err).WithField("fault", kind).Warn("closing connection after protocol fault")

	response, session := conn.deps.handler.Fail(conn.session, err)
	conn.session = session
	if writeErr := conn.write(response); writeErr != nil {
		conn.logger.WithError(writeErr).Debug("unable to write error frame")
	}
}

func (conn *stompConn) write(f *frame.Frame) error {
	if conn.deps.config.DeveloperMode() {
		conn.logger.WithField("command", f.Command.String()).Debugf("sending frame:\n%s", f)
	}
	if _, err := f.WriteTo(conn.rawConnection); err != nil {
		return err
	}
	conn.deps.metrics.frameSent(f.Command)
	return nil
}

func (conn *stompConn) Close() {
	conn.closeOnce.Do(func() {
		atomic.StoreInt32(&conn.state, closed)
		conn.rawConnection.Close()
		conn.notify(ConnectionClosed)
	})
}

func (conn *stompConn) notify(eventType StompSessionEventType) {
	if conn.deps.events == nil {
		return
	}
	e := &ConnEvent{
		ConnId:    conn.id,
		Remote:    conn.rawConnection.RemoteAddr(),
		eventType: eventType,
		conn:      conn,
	}
	if conn.deps.done == nil {
		// nothing to wait on, drop the event rather than block Close
		select {
		case conn.deps.events <- e:
		default:
		}
		return
	}
	select {
	case conn.deps.events <- e:
	case <-conn.deps.done:
	}
}
