// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vmware/stompengine/auth"
	"github.com/vmware/stompengine/config"
	"github.com/vmware/stompengine/log"
	"github.com/vmware/stompengine/sink"
	"github.com/vmware/stompengine/stompserver"
)

const shutdownTimeout = 5 * time.Second

// daemon owns every long running part of stompd.
type daemon struct {
	cfg         *config.Config
	out         io.Writer
	registry    *prometheus.Registry
	servers     []stompserver.StompServer
	addrs       []net.Addr
	httpServer  *http.Server
	httpAddr    net.Addr
	reporter    *stompserver.StatsReporter
	sinkCloser  io.Closer
	serversDone chan struct{}
}

func newDaemon(cfg *config.Config, out io.Writer) *daemon {
	return &daemon{
		cfg:      cfg,
		out:      out,
		registry: prometheus.NewRegistry(),
	}
}

func (d *daemon) run(sigChan chan os.Signal) error {
	if err := d.start(); err != nil {
		d.stop()
		return err
	}
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	log.Log.Infof("received %s, shutting down", sig)
	d.stop()
	return nil
}

func (d *daemon) start() error {
	if err := log.Configure(&d.cfg.Log); err != nil {
		return err
	}
	d.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	authenticator, err := newAuthenticator(d.cfg.Auth)
	if err != nil {
		return err
	}
	messageSink, closer, err := newMessageSink(d.cfg.Sink)
	if err != nil {
		return err
	}
	d.sinkCloser = closer

	stompConfig := d.cfg.StompConfig()
	metrics := stompserver.NewMetrics(d.registry)
	handler := stompserver.NewProtocolHandler(stompConfig, authenticator, messageSink)

	listeners, err := d.newListeners()
	if err != nil {
		return err
	}
	d.serversDone = make(chan struct{}, len(listeners))
	for _, l := range listeners {
		server := stompserver.NewStompServer(l, stompConfig, handler, metrics)
		d.servers = append(d.servers, server)
		go func() {
			server.Start()
			d.serversDone <- struct{}{}
		}()
	}

	if d.cfg.StatsSchedule != "" {
		d.reporter, err = stompserver.NewStatsReporter(aggregateStats(d.servers), d.cfg.StatsSchedule)
		if err != nil {
			return err
		}
		d.reporter.Start()
	}

	if d.cfg.MetricsAddress != "" {
		httpListener, err := net.Listen("tcp", d.cfg.MetricsAddress)
		if err != nil {
			return errors.Wrapf(err, "unable to listen on %s", d.cfg.MetricsAddress)
		}
		d.httpAddr = httpListener.Addr()
		d.httpServer = &http.Server{
			Handler: newHttpHandler(d.registry, aggregateStats(d.servers), d.out),
		}
		go func() {
			if err := d.httpServer.Serve(httpListener); err != nil && err != http.ErrServerClosed {
				log.Log.Errorf("metrics endpoint stopped: %v", err)
			}
		}()
	}

	if !d.cfg.NoBanner {
		printBanner(d.out, d.cfg)
	}
	return nil
}

func (d *daemon) newListeners() ([]stompserver.RawConnectionListener, error) {
	var listeners []stompserver.RawConnectionListener
	if d.cfg.TcpAddress != "" {
		l, err := stompserver.NewTcpConnectionListener(d.cfg.TcpAddress)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to listen on %s", d.cfg.TcpAddress)
		}
		listeners = append(listeners, l)
		log.Log.Infof("Starting STOMP listener at %s", d.cfg.TcpAddress)
	}
	if d.cfg.WsAddress != "" {
		l, err := stompserver.NewWebSocketConnectionListener(d.cfg.WsAddress, d.cfg.WsEndpoint, d.cfg.AllowedOrigins)
		if err != nil {
			for _, opened := range listeners {
				opened.Close()
			}
			return nil, errors.Wrapf(err, "unable to listen on %s", d.cfg.WsAddress)
		}
		listeners = append(listeners, l)
		log.Log.Infof("Starting STOMP over WebSocket listener at %s%s", d.cfg.WsAddress, d.cfg.WsEndpoint)
	}
	for _, l := range listeners {
		if a, ok := l.(interface{ Addr() net.Addr }); ok {
			d.addrs = append(d.addrs, a.Addr())
		}
	}
	return listeners, nil
}

func (d *daemon) stop() {
	for _, server := range d.servers {
		server.Stop()
	}
	for range d.servers {
		select {
		case <-d.serversDone:
		case <-time.After(shutdownTimeout):
			log.Log.Warn("timed out waiting for STOMP server to stop")
		}
	}
	if d.reporter != nil {
		d.reporter.Stop()
	}
	if d.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.httpServer.Shutdown(ctx); err != nil {
			log.Log.Warnf("metrics endpoint shutdown: %v", err)
		}
	}
	if d.sinkCloser != nil {
		if err := d.sinkCloser.Close(); err != nil {
			log.Log.Warnf("message sink close: %v", err)
		}
	}
}

// aggregateStats sums the counters of every server.
type aggregateStats []stompserver.StompServer

func (a aggregateStats) Stats() stompserver.ServerStats {
	var total stompserver.ServerStats
	for _, s := range a {
		stats := s.Stats()
		total.Accepted += stats.Accepted
		total.ActiveConnections += stats.ActiveConnections
		total.FramesReceived += stats.FramesReceived
		total.Faults += stats.Faults
	}
	return total
}

func newAuthenticator(cfg config.AuthConfig) (auth.Authenticator, error) {
	if cfg.Mode == config.AuthModeCredentials {
		credentials, err := auth.NewCredentialsAuthenticator(cfg.Credentials)
		if err != nil {
			return nil, err
		}
		return credentials, nil
	}
	return auth.NewSimpleAuthenticator(cfg.Login, cfg.Passcode), nil
}

// newMessageSink builds the sink chain: destination filter, then a
// circuit breaker for remote brokers, then the broker itself.
func newMessageSink(cfg config.SinkConfig) (sink.MessageSink, io.Closer, error) {
	var upstream sink.MessageSink
	var closer io.Closer

	switch cfg.Kind {
	case config.SinkKindAmqp:
		amqpSink, err := sink.DialAmqpSink(cfg.AmqpUrl, cfg.AmqpExchange)
		if err != nil {
			return nil, nil, err
		}
		upstream, closer = sink.NewBreakerSink("amqp", amqpSink, cfg.Breaker), amqpSink
	case config.SinkKindStomp:
		relay, err := sink.DialStompRelaySink(cfg.RelayAddress, cfg.RelayLogin, cfg.RelayPasscode)
		if err != nil {
			return nil, nil, err
		}
		upstream, closer = sink.NewBreakerSink("stomp-relay", relay, cfg.Breaker), relay
	default:
		bus := sink.NewBusSink()
		upstream, closer = bus, bus
	}

	filtered, err := sink.NewFilteredSink(upstream, cfg.AllowedDestinations)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return filtered, closer, nil
}
