// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/vmware/stompengine/config"
)

var (
	titlef = color.New(color.BgHiWhite, color.FgHiBlack, color.Bold).FprintfFunc()
	labelf = color.New(color.FgHiCyan).FprintfFunc()
)

// printBanner prints the title and a brief summary of the configuration
func printBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w)
	titlef(w, " S T O M P D ")
	fmt.Fprintln(w)

	labelf(w, "Version\t\t\t")
	fmt.Fprintln(w, version)
	labelf(w, "Server name\t\t")
	fmt.Fprintln(w, cfg.ServerName)
	labelf(w, "STOMP versions\t\t")
	fmt.Fprintln(w, strings.Join(cfg.SupportedVersions, ", "))

	if cfg.TcpAddress != "" {
		labelf(w, "TCP listener\t\t")
		fmt.Fprintln(w, cfg.TcpAddress)
	}
	if cfg.WsAddress != "" {
		labelf(w, "WebSocket listener\t")
		fmt.Fprintln(w, cfg.WsAddress+cfg.WsEndpoint)
	}

	labelf(w, "Message sink\t\t")
	switch cfg.Sink.Kind {
	case config.SinkKindAmqp:
		fmt.Fprintf(w, "%s (exchange %s)\n", cfg.Sink.Kind, cfg.Sink.AmqpExchange)
	case config.SinkKindStomp:
		fmt.Fprintf(w, "%s (%s)\n", cfg.Sink.Kind, cfg.Sink.RelayAddress)
	default:
		fmt.Fprintln(w, cfg.Sink.Kind)
	}
	labelf(w, "Auth mode\t\t")
	fmt.Fprintln(w, cfg.Auth.Mode)

	if cfg.MetricsAddress != "" {
		labelf(w, "Metrics endpoint\t")
		fmt.Fprintln(w, cfg.MetricsAddress+"/metrics")
		labelf(w, "Health endpoint\t\t")
		fmt.Fprintln(w, cfg.MetricsAddress+"/healthz")
	}
	if cfg.DeveloperMode {
		color.New(color.FgHiYellow).Fprintln(w, "Developer mode is on, every frame is logged")
	}
	fmt.Fprintln(w)
}
