// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sink

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

type amqpPublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AmqpSink publishes messages to an AMQP exchange, using the STOMP
// destination as routing key.
type AmqpSink struct {
	channel  amqpPublisher
	exchange string
	closers  []func() error
}

// DialAmqpSink connects to the broker at url and opens a channel on it.
func DialAmqpSink(url, exchange string) (*AmqpSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to amqp broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "unable to open amqp channel")
	}
	s := NewAmqpSink(ch, exchange)
	s.closers = []func() error{ch.Close, conn.Close}
	return s, nil
}

func NewAmqpSink(channel amqpPublisher, exchange string) *AmqpSink {
	return &AmqpSink{channel: channel, exchange: exchange}
}

func (s *AmqpSink) Send(destination string, body []byte) error {
	err := s.channel.Publish(s.exchange, destination, false, false, amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.New().String(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "unable to publish to exchange %q", s.exchange)
	}
	return nil
}

func (s *AmqpSink) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}
