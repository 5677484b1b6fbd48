// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/vmware/stompengine/log"
)

type StompServer interface {
	// starts the server, blocks until Stop is called
	Start()
	// stops the server and closes every open connection
	Stop()
	// SetConnectionEventCallback is used to set up a callback when certain STOMP session events happen
	// such as ConnectionStarting, ConnectionEstablished and ConnectionClosed.
	SetConnectionEventCallback(connEventType StompSessionEventType, cb func(connEvent *ConnEvent))
	// returns a snapshot of the server counters
	Stats() ServerStats
}

type StompSessionEventType int

const (
	ConnectionStarting StompSessionEventType = iota
	ConnectionEstablished
	ConnectionClosed
)

type ConnEvent struct {
	ConnId    string
	Remote    string
	eventType StompSessionEventType
	conn      StompConn
}

// ServerStats is a point in time view of the server counters.
type ServerStats struct {
	Accepted          int64
	ActiveConnections int64
	FramesReceived    int64
	Faults            int64
}

type serverStats struct {
	accepted       int64
	active         int64
	framesReceived int64
	faults         int64
}

func (s *serverStats) snapshot() ServerStats {
	return ServerStats{
		Accepted:          atomic.LoadInt64(&s.accepted),
		ActiveConnections: atomic.LoadInt64(&s.active),
		FramesReceived:    atomic.LoadInt64(&s.framesReceived),
		Faults:            atomic.LoadInt64(&s.faults),
	}
}

type stompServer struct {
	connectionListener       RawConnectionListener
	connectionEvents         chan *ConnEvent
	connectionEventCallbacks map[StompSessionEventType]func(event *ConnEvent)
	done                     chan struct{}
	stopOnce                 sync.Once
	running                  int32
	connectionsMap           map[string]StompConn
	config                   StompConfig
	handler                  *ProtocolHandler
	metrics                  *Metrics
	stats                    serverStats
	callbackLock             sync.RWMutex
}

// NewStompServer creates a server accepting connections from listener and
// answering them with handler. metrics may be nil.
func NewStompServer(listener RawConnectionListener, config StompConfig, handler *ProtocolHandler, metrics *Metrics) StompServer {
	if config == nil {
		config = NewDefaultStompConfig()
	}
	if handler == nil {
		handler = NewProtocolHandler(config, nil, nil)
	}
	return &stompServer{
		config:                   config,
		handler:                  handler,
		metrics:                  metrics,
		connectionListener:       listener,
		done:                     make(chan struct{}),
		connectionsMap:           make(map[string]StompConn),
		connectionEvents:         make(chan *ConnEvent, 64),
		connectionEventCallbacks: make(map[StompSessionEventType]func(event *ConnEvent)),
	}
}

func (s *stompServer) SetConnectionEventCallback(connEventType StompSessionEventType, cb func(connEvent *ConnEvent)) {
	s.callbackLock.Lock()
	defer s.callbackLock.Unlock()
	s.connectionEventCallbacks[connEventType] = cb
}

func (s *stompServer) Stats() ServerStats {
	return s.stats.snapshot()
}

func (s *stompServer) Start() {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return
	}

	go s.waitForConnections()
	s.run()
}

func (s *stompServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *stompServer) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *stompServer) waitForConnections() {
	for {
		rawConn, err := s.connectionListener.Accept()
		if err != nil {
			if s.stopped() || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Log.Warnf("Failed to establish client connection: %v", err)
			continue
		}

		c := newStompConn(rawConn, connDeps{
			handler: s.handler,
			config:  s.config,
			metrics: s.metrics,
			stats:   &s.stats,
			events:  s.connectionEvents,
			done:    s.done,
		})
		atomic.AddInt64(&s.stats.accepted, 1)

		select {
		case s.connectionEvents <- &ConnEvent{
			ConnId:    c.GetId(),
			Remote:    c.RemoteAddr(),
			conn:      c,
			eventType: ConnectionStarting,
		}:
		case <-s.done:
			rawConn.Close()
			return
		}

		go c.Serve()
	}
}

func (s *stompServer) run() {
	for {
		select {
		case <-s.done:
			s.connectionListener.Close()
			// close all open connections
			for _, c := range s.connectionsMap {
				c.Close()
			}
			s.connectionsMap = make(map[string]StompConn)
			atomic.StoreInt64(&s.stats.active, 0)
			return

		case e := <-s.connectionEvents:
			s.handleConnectionEvent(e)
		}
	}
}

func (s *stompServer) handleConnectionEvent(e *ConnEvent) {
	s.callbackLock.RLock()
	defer s.callbackLock.RUnlock()

	switch e.eventType {
	case ConnectionStarting:
		s.connectionsMap[e.ConnId] = e.conn
		atomic.AddInt64(&s.stats.active, 1)
	case ConnectionClosed:
		if _, ok := s.connectionsMap[e.ConnId]; ok {
			delete(s.connectionsMap, e.ConnId)
			atomic.AddInt64(&s.stats.active, -1)
		}
	}

	if fn, exists := s.connectionEventCallbacks[e.eventType]; exists {
		fn(e)
	}
}
