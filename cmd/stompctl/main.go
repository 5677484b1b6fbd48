// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-stomp/stomp/v3"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"github.com/vmware/stompengine/auth"
	"github.com/vmware/stompengine/frame"
)

var connectFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "addr, a",
		Value: "localhost:61613",
		Usage: "Address of the STOMP server",
	},
	cli.StringFlag{
		Name:  "login, l",
		Value: "system",
		Usage: "Login sent with CONNECT",
	},
	cli.StringFlag{
		Name:   "passcode, p",
		Value:  "manager",
		Usage:  "Passcode sent with CONNECT",
		EnvVar: "STOMPCTL_PASSCODE",
	},
	cli.StringFlag{
		Name:  "accept-version",
		Value: "1.0,1.1,1.2",
		Usage: "Protocol versions offered to the server",
	},
}

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "stompctl"
	app.Usage = "Talks to a stompd server"
	app.Writer = out
	app.Commands = []cli.Command{
		{
			Name:  "probe",
			Usage: "Connect, print the negotiated session and disconnect",
			Flags: connectFlags,
			Action: func(c *cli.Context) error {
				conn, err := dial(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "server:  %s\nversion: %s\nsession: %s\n",
					conn.Server(), conn.Version(), conn.Session())
				return conn.Disconnect()
			},
		},
		{
			Name:      "send",
			Usage:     "Send a message to a destination",
			ArgsUsage: "<body>",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "destination, d",
					Usage: "Destination of the message",
				},
				cli.StringFlag{
					Name:  "content-type",
					Value: frame.TextPlain,
					Usage: "Content type of the body",
				},
			}, connectFlags...),
			Action: func(c *cli.Context) error {
				destination := c.String("destination")
				if destination == "" {
					return errors.New("a destination is required")
				}
				conn, err := dial(c)
				if err != nil {
					return err
				}
				body := []byte(c.Args().First())
				if err := conn.Send(destination, c.String("content-type"), body); err != nil {
					conn.MustDisconnect()
					return errors.Wrapf(err, "unable to send to %s", destination)
				}
				if err := conn.Disconnect(); err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "sent %d bytes to %s\n", len(body), destination)
				return nil
			},
		},
		{
			Name:      "hash-passcode",
			Usage:     "Print the bcrypt hash of a passcode for the credentials table",
			ArgsUsage: "<passcode>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return errors.New("expected exactly one passcode")
				}
				hash, err := auth.HashPasscode(c.Args().First())
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, hash)
				return nil
			},
		},
	}
	return app
}

func dial(c *cli.Context) (*stomp.Conn, error) {
	var versions []stomp.Version
	for _, v := range strings.Split(c.String("accept-version"), ",") {
		versions = append(versions, stomp.Version(strings.TrimSpace(v)))
	}
	conn, err := stomp.Dial("tcp", c.String("addr"),
		stomp.ConnOpt.Login(c.String("login"), c.String("passcode")),
		stomp.ConnOpt.AcceptVersion(versions...))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to %s", c.String("addr"))
	}
	return conn, nil
}

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
