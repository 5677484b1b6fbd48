// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sink

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Message is a SEND body delivered to in-process subscribers.
type Message struct {
	Id          uuid.UUID
	Destination string
	Body        []byte
}

// BusSink delivers messages to in-process subscribers of a destination.
// A message sent to a destination with no subscribers is dropped.
type BusSink struct {
	lock          sync.RWMutex
	subscriptions map[string]map[uuid.UUID]*BusSubscription
	closed        bool
}

// BusSubscription receives messages for one destination on C.
type BusSubscription struct {
	Id          uuid.UUID
	Destination string
	C           <-chan *Message
	ch          chan *Message
	bus         *BusSink
}

func NewBusSink() *BusSink {
	return &BusSink{
		subscriptions: make(map[string]map[uuid.UUID]*BusSubscription),
	}
}

// Subscribe registers a subscription with room for buffer pending messages.
func (b *BusSink) Subscribe(destination string, buffer int) *BusSubscription {
	ch := make(chan *Message, buffer)
	sub := &BusSubscription{
		Id:          uuid.New(),
		Destination: destination,
		C:           ch,
		ch:          ch,
		bus:         b,
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	subs, ok := b.subscriptions[destination]
	if !ok {
		subs = make(map[uuid.UUID]*BusSubscription)
		b.subscriptions[destination] = subs
	}
	subs[sub.Id] = sub
	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (s *BusSubscription) Unsubscribe() {
	s.bus.lock.Lock()
	defer s.bus.lock.Unlock()
	subs, ok := s.bus.subscriptions[s.Destination]
	if !ok {
		return
	}
	if _, ok := subs[s.Id]; !ok {
		return
	}
	delete(subs, s.Id)
	if len(subs) == 0 {
		delete(s.bus.subscriptions, s.Destination)
	}
	close(s.ch)
}

// Send hands the message to every subscriber of destination. It fails
// when a subscriber's buffer is full rather than blocking the sender.
func (b *BusSink) Send(destination string, body []byte) error {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.closed {
		return ErrSinkClosed
	}

	msg := &Message{
		Id:          uuid.New(),
		Destination: destination,
		Body:        body,
	}
	var full int
	for _, sub := range b.subscriptions[destination] {
		select {
		case sub.ch <- msg:
		default:
			full++
		}
	}
	if full > 0 {
		return errors.Errorf("%d subscriber(s) of %s are not keeping up", full, destination)
	}
	return nil
}

func (b *BusSink) SubscriberCount(destination string) int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.subscriptions[destination])
}

// Close rejects further sends and closes every subscription channel.
func (b *BusSink) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for dest, subs := range b.subscriptions {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(b.subscriptions, dest)
	}
	return nil
}
