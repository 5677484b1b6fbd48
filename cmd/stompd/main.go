// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vmware/stompengine/config"
)

var version = "dev"

func newRootCommand(sigChan chan os.Signal) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "stompd",
		Short:        "STOMP server accepting CONNECT, SEND and DISCONNECT over TCP and WebSocket",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, err := cmd.Flags().GetString("config-file")
			if err != nil {
				return err
			}
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return newDaemon(cfg, cmd.OutOrStdout()).run(sigChan)
		},
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(&cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, err := cmd.Flags().GetString("config-file")
			if err != nil {
				return err
			}
			if _, err := config.Load(configFile, cmd.Flags()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	})
	return cmd
}

func main() {
	if err := newRootCommand(make(chan os.Signal, 1)).Execute(); err != nil {
		os.Exit(1)
	}
}
