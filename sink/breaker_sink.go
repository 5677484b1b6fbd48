// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sink

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/vmware/stompengine/log"
)

// BreakerConfig configures the circuit breaker placed in front of an
// upstream sink.
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"failures"`
}

// BreakerSink stops calling a failing upstream sink until it has had
// time to recover. While open, Send fails fast with gobreaker.ErrOpenState.
type BreakerSink struct {
	next    MessageSink
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerSink(name string, next MessageSink, cfg BreakerConfig) *BreakerSink {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Log.WithField("sink", name).Warnf("circuit breaker state changed from %s to %s", from, to)
		},
	}
	return &BreakerSink{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

func (s *BreakerSink) Send(destination string, body []byte) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.next.Send(destination, body)
	})
	return err
}

func (s *BreakerSink) State() gobreaker.State {
	return s.breaker.State()
}
