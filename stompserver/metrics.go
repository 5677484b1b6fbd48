// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vmware/stompengine/frame"
)

// Metrics holds the prometheus collectors updated by the connection loops.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FramesReceived    *prometheus.CounterVec
	FramesSent        *prometheus.CounterVec
	Faults            *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stompd",
				Name:      "frames_received_total",
				Help:      "Frames read from clients",
			},
			[]string{"command"}),
		FramesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stompd",
				Name:      "frames_sent_total",
				Help:      "Frames written to clients",
			},
			[]string{"command"}),
		Faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stompd",
				Name:      "faults_total",
				Help:      "Protocol faults that closed a connection",
			},
			[]string{"kind"}),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "stompd",
				Name:      "active_connections",
				Help:      "Currently open client connections",
			}),
	}
	if reg != nil {
		reg.MustRegister(m.FramesReceived, m.FramesSent, m.Faults, m.ActiveConnections)
	}
	return m
}

// commandLabel keeps label cardinality bounded when clients send garbage.
func commandLabel(c frame.Command) string {
	if c.Known() {
		return c.String()
	}
	return "UNKNOWN"
}

func (m *Metrics) frameReceived(c frame.Command) {
	if m != nil {
		m.FramesReceived.WithLabelValues(commandLabel(c)).Inc()
	}
}

func (m *Metrics) frameSent(c frame.Command) {
	if m != nil {
		m.FramesSent.WithLabelValues(commandLabel(c)).Inc()
	}
}

func (m *Metrics) fault(err error) {
	if m != nil {
		m.Faults.WithLabelValues(FaultKind(err)).Inc()
	}
}

func (m *Metrics) connectionOpened() {
	if m != nil {
		m.ActiveConnections.Inc()
	}
}

func (m *Metrics) connectionClosed() {
	if m != nil {
		m.ActiveConnections.Dec()
	}
}
