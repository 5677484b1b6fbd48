// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sink

import (
	"errors"
	"testing"
	"time"

	stompframe "github.com/go-stomp/stomp/v3/frame"
	"github.com/sony/gobreaker/v2"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Send(destination string, body []byte) error {
	args := m.Called(destination, body)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

type MockStompSender struct {
	mock.Mock
}

func (m *MockStompSender) Send(destination, contentType string, body []byte, opts ...func(*stompframe.Frame) error) error {
	args := m.Called(destination, contentType, body)
	return args.Error(0)
}

func (m *MockStompSender) Disconnect() error {
	return m.Called().Error(0)
}

func TestBusSink_Send(t *testing.T) {
	bus := NewBusSink()
	sub := bus.Subscribe("/queue/a", 1)
	other := bus.Subscribe("/queue/b", 1)

	require.NoError(t, bus.Send("/queue/a", []byte("hello")))

	msg := <-sub.C
	assert.Equal(t, "/queue/a", msg.Destination)
	assert.Equal(t, []byte("hello"), msg.Body)
	assert.Len(t, other.C, 0)
}

func TestBusSink_NoSubscribers(t *testing.T) {
	bus := NewBusSink()
	assert.NoError(t, bus.Send("/queue/nobody", []byte("x")))
}

func TestBusSink_SlowSubscriber(t *testing.T) {
	bus := NewBusSink()
	bus.Subscribe("/queue/a", 1)

	require.NoError(t, bus.Send("/queue/a", []byte("1")))
	assert.Error(t, bus.Send("/queue/a", []byte("2")))
}

func TestBusSink_Unsubscribe(t *testing.T) {
	bus := NewBusSink()
	sub := bus.Subscribe("/queue/a", 1)
	assert.Equal(t, 1, bus.SubscriberCount("/queue/a"))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, bus.SubscriberCount("/queue/a"))

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestBusSink_Close(t *testing.T) {
	bus := NewBusSink()
	sub := bus.Subscribe("/queue/a", 1)

	require.NoError(t, bus.Close())
	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Unsubscribe()

	assert.Equal(t, ErrSinkClosed, bus.Send("/queue/a", []byte("x")))
}

func TestAmqpSink_Send(t *testing.T) {
	pub := &MockPublisher{}
	pub.On("Publish", "stomp", "/queue/a", false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
		return string(p.Body) == "hello" && p.ContentType == "text/plain" && p.MessageId != ""
	})).Return(nil)

	s := NewAmqpSink(pub, "stomp")
	assert.NoError(t, s.Send("/queue/a", []byte("hello")))
	pub.AssertExpectations(t)
	assert.NoError(t, s.Close())
}

func TestAmqpSink_SendFails(t *testing.T) {
	pub := &MockPublisher{}
	cause := errors.New("channel closed")
	pub.On("Publish", "stomp", "/queue/a", false, false, mock.Anything).Return(cause)

	err := NewAmqpSink(pub, "stomp").Send("/queue/a", nil)
	assert.True(t, errors.Is(err, cause))
}

func TestStompRelaySink(t *testing.T) {
	sender := &MockStompSender{}
	sender.On("Send", "/queue/a", "text/plain", []byte("hi")).Return(nil)
	sender.On("Send", "/queue/b", "text/plain", []byte("hi")).Return(errors.New("gone"))
	sender.On("Disconnect").Return(nil)

	s := NewStompRelaySink(sender)
	assert.NoError(t, s.Send("/queue/a", []byte("hi")))
	assert.Error(t, s.Send("/queue/b", []byte("hi")))
	assert.NoError(t, s.Close())
	sender.AssertExpectations(t)
}

func TestBreakerSink_OpensAfterFailures(t *testing.T) {
	next := &MockSink{}
	next.On("Send", "/queue/a", mock.Anything).Return(errors.New("down"))

	s := NewBreakerSink("test", next, BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute})
	assert.Error(t, s.Send("/queue/a", nil))
	assert.Equal(t, gobreaker.StateClosed, s.State())
	assert.Error(t, s.Send("/queue/a", nil))
	assert.Equal(t, gobreaker.StateOpen, s.State())

	err := s.Send("/queue/a", nil)
	assert.Equal(t, gobreaker.ErrOpenState, err)
	next.AssertNumberOfCalls(t, "Send", 2)
}

func TestBreakerSink_PassesThrough(t *testing.T) {
	next := &MockSink{}
	next.On("Send", "/queue/a", []byte("ok")).Return(nil)

	s := NewBreakerSink("test", next, BreakerConfig{})
	assert.NoError(t, s.Send("/queue/a", []byte("ok")))
	next.AssertExpectations(t)
}

func TestFilteredSink(t *testing.T) {
	next := &MockSink{}
	next.On("Send", mock.Anything, mock.Anything).Return(nil)

	s, err := NewFilteredSink(next, []string{"/queue/*", "/topic/**"})
	require.NoError(t, err)

	assert.True(t, s.Allowed("/queue/orders"))
	assert.False(t, s.Allowed("/queue/orders/eu"))
	assert.True(t, s.Allowed("/topic/a/b/c"))
	assert.False(t, s.Allowed("/temp/x"))

	assert.NoError(t, s.Send("/queue/orders", nil))
	assert.Equal(t, ErrDestinationNotAllowed, s.Send("/temp/x", nil))
	next.AssertNumberOfCalls(t, "Send", 1)
}

func TestFilteredSink_NoPatternsAllowsAll(t *testing.T) {
	s, err := NewFilteredSink(NewBusSink(), nil)
	require.NoError(t, err)
	assert.True(t, s.Allowed("/anything"))
}
