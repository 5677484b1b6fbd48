// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// webSocketStream presents the messages of a websocket as one continuous
// byte stream. Every Write is sent as a single text message.
type webSocketStream struct {
	wsCon   *websocket.Conn
	current io.Reader
	readErr error
	// gorilla allows a single concurrent writer
	writeLock sync.Mutex
}

func (s *webSocketStream) Read(p []byte) (int, error) {
	for {
		if s.readErr != nil {
			return 0, s.readErr
		}
		if s.current == nil {
			_, r, err := s.wsCon.NextReader()
			if err != nil {
				// the connection cannot be read again after a failed NextReader
				s.readErr = io.EOF
				if isTimeout(err) {
					return 0, err
				}
				return 0, io.EOF
			}
			s.current = r
		}
		n, err := s.current.Read(p)
		if err == io.EOF {
			s.current = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *webSocketStream) Write(p []byte) (int, error) {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	if err := s.wsCon.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *webSocketStream) SetReadDeadline(t time.Time) error {
	return s.wsCon.SetReadDeadline(t)
}

func (s *webSocketStream) Close() error {
	return s.wsCon.Close()
}

type webSocketConnectionListener struct {
	httpServer            *http.Server
	requestHandler        *http.ServeMux
	tcpConnectionListener net.Listener
	connectionsChannel    chan rawConnResult
	allowedOrigins        []string
	closed                chan struct{}
	closeOnce             sync.Once
}

type rawConnResult struct {
	conn RawConnection
	err  error
}

func NewWebSocketConnectionListener(addr string, endpoint string, allowedOrigins []string) (RawConnectionListener, error) {
	rh := http.NewServeMux()
	l := &webSocketConnectionListener{
		requestHandler: rh,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: rh,
		},
		connectionsChannel: make(chan rawConnResult),
		allowedOrigins:     allowedOrigins,
		closed:             make(chan struct{}),
	}

	var upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Subprotocols:    []string{"v12.stomp", "v11.stomp", "v10.stomp"},
	}

	upgrader.CheckOrigin = l.checkOrigin

	rh.HandleFunc(endpoint, func(writer http.ResponseWriter, request *http.Request) {
		conn, err := upgrader.Upgrade(writer, request, nil)
		var result rawConnResult
		if err != nil {
			result.err = err
		} else {
			result.conn = newStreamConnection(&webSocketStream{wsCon: conn}, conn.RemoteAddr().String())
		}
		select {
		case l.connectionsChannel <- result:
		case <-l.closed:
			if conn != nil {
				conn.Close()
			}
		}
	})

	var err error
	l.tcpConnectionListener, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	go l.httpServer.Serve(l.tcpConnectionListener)
	return l, nil
}

// Addr returns the address the listener is bound to.
func (l *webSocketConnectionListener) Addr() net.Addr {
	return l.tcpConnectionListener.Addr()
}

func (l *webSocketConnectionListener) checkOrigin(r *http.Request) bool {
	if len(l.allowedOrigins) == 0 {
		return true
	}

	origin := r.Header["Origin"]
	if len(origin) == 0 {
		return true
	}
	u, err := url.Parse(origin[0])
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}

	for _, allowedOrigin := range l.allowedOrigins {
		if strings.EqualFold(u.Host, allowedOrigin) {
			return true
		}
	}

	return false
}

func (l *webSocketConnectionListener) Accept() (RawConnection, error) {
	select {
	case cr := <-l.connectionsChannel:
		return cr.conn, cr.err
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *webSocketConnectionListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
	})
	return l.httpServer.Close()
}
