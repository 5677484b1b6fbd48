// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/vmware/stompengine/log"
)

// StatsSource is anything that can report server counters, a single
// StompServer or an aggregate of several.
type StatsSource interface {
	Stats() ServerStats
}

// StatsReporter periodically logs the counters of a server.
type StatsReporter struct {
	server  StatsSource
	cronJob *cron.Cron
}

// NewStatsReporter schedules a report using a cron spec such as
// "@every 1m". The reporter does nothing until Start is called.
func NewStatsReporter(server StatsSource, schedule string) (*StatsReporter, error) {
	r := &StatsReporter{
		server:  server,
		cronJob: cron.New(),
	}
	if _, err := r.cronJob.AddFunc(schedule, r.report); err != nil {
		return nil, errors.Wrapf(err, "invalid stats schedule %q", schedule)
	}
	return r, nil
}

func (r *StatsReporter) Start() {
	r.cronJob.Start()
}

// Stop halts the schedule and waits for a running report to finish.
func (r *StatsReporter) Stop() {
	<-r.cronJob.Stop().Done()
}

func (r *StatsReporter) report() {
	stats := r.server.Stats()
	log.Log.WithFields(logrus.Fields{
		"accepted":        stats.Accepted,
		"active":          stats.ActiveConnections,
		"frames_received": stats.FramesReceived,
		"faults":          stats.Faults,
	}).Info("stomp server stats")
}
