// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package config loads the stompd configuration from defaults, an
// optional config file, STOMPD_ environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vmware/stompengine/log"
	"github.com/vmware/stompengine/sink"
	"github.com/vmware/stompengine/stompserver"
)

const EnvPrefix = "STOMPD"

const (
	AuthModeSimple      = "simple"
	AuthModeCredentials = "credentials"

	SinkKindBus   = "bus"
	SinkKindAmqp  = "amqp"
	SinkKindStomp = "stomp"
)

type Config struct {
	TcpAddress        string             `mapstructure:"tcp_address"`
	WsAddress         string             `mapstructure:"ws_address"`
	WsEndpoint        string             `mapstructure:"ws_endpoint"`
	AllowedOrigins    []string           `mapstructure:"allowed_origins"`
	MetricsAddress    string             `mapstructure:"metrics_address"`
	ServerName        string             `mapstructure:"server_name"`
	SupportedVersions []string           `mapstructure:"supported_versions"`
	Limits            stompserver.Limits `mapstructure:"limits"`
	ReadTimeout       time.Duration      `mapstructure:"read_timeout"`
	DeveloperMode     bool               `mapstructure:"developer_mode"`
	StatsSchedule     string             `mapstructure:"stats_schedule"`
	NoBanner          bool               `mapstructure:"no_banner"`
	Auth              AuthConfig         `mapstructure:"auth"`
	Sink              SinkConfig         `mapstructure:"sink"`
	Log               log.LogConfig      `mapstructure:"log"`
}

type AuthConfig struct {
	Mode     string `mapstructure:"mode"`
	Login    string `mapstructure:"login"`
	Passcode string `mapstructure:"passcode"`
	// login to bcrypt hash, used in credentials mode
	Credentials map[string]string `mapstructure:"credentials"`
}

type SinkConfig struct {
	Kind                string             `mapstructure:"kind"`
	AmqpUrl             string             `mapstructure:"amqp_url"`
	AmqpExchange        string             `mapstructure:"amqp_exchange"`
	RelayAddress        string             `mapstructure:"relay_address"`
	RelayLogin          string             `mapstructure:"relay_login"`
	RelayPasscode       string             `mapstructure:"relay_passcode"`
	AllowedDestinations []string           `mapstructure:"allowed_destinations"`
	Breaker             sink.BreakerConfig `mapstructure:"breaker"`
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"tcp-address":     "tcp_address",
	"ws-address":      "ws_address",
	"ws-endpoint":     "ws_endpoint",
	"metrics-address": "metrics_address",
	"developer-mode":  "developer_mode",
	"no-banner":       "no_banner",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"sink":            "sink.kind",
}

func setDefaults(v *viper.Viper) {
	limits := stompserver.DefaultLimits()

	v.SetDefault("tcp_address", ":61613")
	v.SetDefault("ws_address", "")
	v.SetDefault("ws_endpoint", "/stomp")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("metrics_address", ":9113")
	v.SetDefault("server_name", stompserver.DefaultServerName)
	v.SetDefault("supported_versions", []string{"1.0", "1.1", "1.2"})
	v.SetDefault("limits.max_command_length", limits.MaxCommandLength)
	v.SetDefault("limits.max_header_count", limits.MaxHeaderCount)
	v.SetDefault("limits.max_header_line_length", limits.MaxHeaderLineLength)
	v.SetDefault("limits.max_body_length", limits.MaxBodyLength)
	v.SetDefault("read_timeout", "0s")
	v.SetDefault("developer_mode", false)
	v.SetDefault("stats_schedule", "@every 1m")
	v.SetDefault("no_banner", false)

	v.SetDefault("auth.mode", AuthModeSimple)
	v.SetDefault("auth.login", "system")
	v.SetDefault("auth.passcode", "manager")

	v.SetDefault("sink.kind", SinkKindBus)
	v.SetDefault("sink.amqp_url", "")
	v.SetDefault("sink.amqp_exchange", "amq.topic")
	v.SetDefault("sink.relay_address", "")
	v.SetDefault("sink.relay_login", "")
	v.SetDefault("sink.relay_passcode", "")
	v.SetDefault("sink.allowed_destinations", []string{})
	v.SetDefault("sink.breaker.max_requests", 1)
	v.SetDefault("sink.breaker.interval", "0s")
	v.SetDefault("sink.breaker.timeout", "30s")
	v.SetDefault("sink.breaker.failures", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.full_timestamp", true)
	v.SetDefault("log.disable_colors", false)
}

// RegisterFlags adds the flags understood by Load to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config-file", "c", "", "Path to a json, yaml or toml config file")
	fs.StringP("tcp-address", "t", ":61613", "Address of the STOMP TCP listener")
	fs.String("ws-address", "", "Address of the STOMP over WebSocket listener (disabled when empty)")
	fs.String("ws-endpoint", "/stomp", "HTTP path of the WebSocket endpoint")
	fs.String("metrics-address", ":9113", "Address of the metrics and health endpoint (disabled when empty)")
	fs.Bool("developer-mode", false, "Log every frame received and sent")
	fs.Bool("no-banner", false, "Do not print the start-up banner")
	fs.String("log-level", "info", "Log level")
	fs.String("log-format", "text", "Log format, text or json")
	fs.String("sink", SinkKindBus, "Where SEND bodies go: bus, amqp or stomp")
}

// Load builds the configuration. Flags not set on the command line do
// not override the file or the environment. fs may be nil.
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flagName, key := range flagKeys {
			if f := fs.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "unable to bind flag %s", flagName)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "unable to read config file %s", configFile)
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.TcpAddress == "" && c.WsAddress == "" {
		return errors.New("at least one of tcp_address and ws_address must be set")
	}

	switch c.Auth.Mode {
	case AuthModeSimple:
	case AuthModeCredentials:
		if len(c.Auth.Credentials) == 0 {
			return errors.New("auth.credentials must not be empty in credentials mode")
		}
	default:
		return errors.Errorf("unknown auth.mode %q", c.Auth.Mode)
	}

	switch c.Sink.Kind {
	case SinkKindBus:
	case SinkKindAmqp:
		if c.Sink.AmqpUrl == "" {
			return errors.New("sink.amqp_url is required for the amqp sink")
		}
	case SinkKindStomp:
		if c.Sink.RelayAddress == "" {
			return errors.New("sink.relay_address is required for the stomp sink")
		}
	default:
		return errors.Errorf("unknown sink.kind %q", c.Sink.Kind)
	}
	return nil
}

// StompConfig returns the server settings of c.
func (c *Config) StompConfig() stompserver.StompConfig {
	return stompserver.NewStompConfig(stompserver.StompConfigOptions{
		Limits:            c.Limits,
		SupportedVersions: c.SupportedVersions,
		ServerName:        c.ServerName,
		ReadTimeout:       c.ReadTimeout,
		DeveloperMode:     c.DeveloperMode,
	})
}
