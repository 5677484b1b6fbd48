// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"errors"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/vmware/stompengine/auth"
	"github.com/vmware/stompengine/frame"
	"github.com/vmware/stompengine/sink"
)

// Session is the negotiation state of one connection. It is passed by
// value into the ProtocolHandler and the updated copy is handed back.
type Session struct {
	Authenticated bool
	Version       string
	Token         string
	MustClose     bool
}

func NewSession() Session {
	return Session{}
}

// ProtocolHandler turns inbound frames into responses. A single handler
// is shared by every connection of a server; all per-connection state
// lives in the Session values it is given.
type ProtocolHandler struct {
	config        StompConfig
	authenticator auth.Authenticator
	sink          sink.MessageSink
}

// NewProtocolHandler creates a handler. A nil authenticator accepts the
// default credentials and a nil sink delivers to an in-process bus.
func NewProtocolHandler(config StompConfig, authenticator auth.Authenticator, messageSink sink.MessageSink) *ProtocolHandler {
	if config == nil {
		config = NewDefaultStompConfig()
	}
	if authenticator == nil {
		authenticator = auth.NewDefaultAuthenticator()
	}
	if messageSink == nil {
		messageSink = sink.NewBusSink()
	}
	return &ProtocolHandler{
		config:        config,
		authenticator: authenticator,
		sink:          messageSink,
	}
}

// Handle processes one inbound frame. The returned frame is nil when
// there is nothing to send back. A non-nil error must be passed to Fail
// together with the returned session. Panics raised by the authenticator
// or the sink are recovered and returned as *PanicError.
func (h *ProtocolHandler) Handle(session Session, f *frame.Frame) (response *frame.Frame, next Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			response, next, err = nil, session, &PanicError{Value: r}
		}
	}()

	switch f.Command {
	case frame.CONNECT, frame.STOMP:
		return h.connect(session, f)
	case frame.SEND:
		return h.send(session, f)
	case frame.DISCONNECT:
		return h.disconnect(session, f)
	}
	return nil, session, nil
}

// Fail converts err into the ERROR frame sent to the client. The session
// is always marked for closing.
func (h *ProtocolHandler) Fail(session Session, err error) (*frame.Frame, Session) {
	message := err.Error()
	response := frame.New(frame.ERROR,
		frame.ContentType, frame.TextPlain,
		frame.Message, message)
	response.SetBody([]byte(message))
	session.MustClose = true
	return response, session
}

// DetectVersion picks the protocol version for an accept-version value.
// A single version is returned as is; the caller checks that it is
// supported. From a list the highest supported entry wins.
func (h *ProtocolHandler) DetectVersion(acceptVersion string) (string, error) {
	if !strings.Contains(acceptVersion, ",") {
		return acceptVersion, nil
	}

	var best string
	var bestVersion *semver.Version
	for _, candidate := range strings.Split(acceptVersion, ",") {
		candidate = strings.TrimSpace(candidate)
		if !h.config.IsSupportedVersion(candidate) {
			continue
		}
		v, err := semver.NewVersion(candidate)
		if err != nil {
			continue
		}
		if bestVersion == nil || v.GreaterThan(bestVersion) {
			best, bestVersion = candidate, v
		}
	}
	if bestVersion == nil {
		return "", h.unsupportedVersion()
	}
	return best, nil
}

func (h *ProtocolHandler) unsupportedVersion() *UnsupportedVersionError {
	supported := make([]string, 0, len(h.config.SupportedVersions()))
	for _, v := range h.config.SupportedVersions() {
		supported = append(supported, string(v))
	}
	return &UnsupportedVersionError{Supported: supported}
}

func (h *ProtocolHandler) connect(session Session, f *frame.Frame) (*frame.Frame, Session, error) {
	acceptVersion, ok := f.HeaderValue(frame.AcceptVersion)
	if !ok {
		acceptVersion = frame.DefaultVersion
	}
	version, err := h.DetectVersion(acceptVersion)
	if err == nil && !h.config.IsSupportedVersion(version) {
		err = h.unsupportedVersion()
	}
	if err != nil {
		session.MustClose = true
		return nil, session, err
	}

	login, _ := f.HeaderValue(frame.Login)
	passcode, _ := f.HeaderValue(frame.Passcode)
	token, err := h.authenticator.Authenticate(login, passcode)
	if err != nil {
		var authErr *auth.AuthenticationError
		if !errors.As(err, &authErr) {
			err = &auth.AuthenticationError{Login: login, Err: err}
		}
		session.Authenticated = false
		session.MustClose = true
		return nil, session, err
	}

	session.Authenticated = true
	session.Version = version
	session.Token = token

	return frame.New(frame.CONNECTED,
		frame.Session, token,
		frame.Version, version,
		frame.Server, h.config.ServerName(),
		frame.HeartBeat, frame.DefaultHeartBeat), session, nil
}

func (h *ProtocolHandler) send(session Session, f *frame.Frame) (*frame.Frame, Session, error) {
	if !session.Authenticated {
		session.MustClose = true
		return nil, session, &auth.AuthenticationError{}
	}

	destination, _ := f.HeaderValue(frame.Destination)
	if destination == "" {
		return nil, session, &SendError{Err: ErrMissingDestination}
	}
	if err := h.sink.Send(destination, f.Body()); err != nil {
		return nil, session, &SendError{Destination: destination, Err: err}
	}
	return nil, session, nil
}

func (h *ProtocolHandler) disconnect(session Session, f *frame.Frame) (*frame.Frame, Session, error) {
	response := frame.New(frame.RECEIPT)
	if receipt, ok := f.HeaderValue(frame.Receipt); ok {
		response.SetHeader(frame.ReceiptId, receipt)
	}
	session.MustClose = true
	return response, session, nil
}
