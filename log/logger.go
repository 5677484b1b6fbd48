// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package log

import (
	"io"
	"os"
	"path"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var Log *StompLogger

// LogConfig selects level, format and destination of the server log.
type LogConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"` // text or json
	Output        string `mapstructure:"output"` // stdout, stderr, null or a file path
	FullTimestamp bool   `mapstructure:"full_timestamp"`
	DisableColors bool   `mapstructure:"disable_colors"`
}

// StompLogger adds the calling package and file to every entry.
type StompLogger struct {
	*logrus.Logger
}

func init() {
	Log = &StompLogger{logrus.New()}
}

// Configure applies cfg to the package logger.
func Configure(cfg *LogConfig) error {
	if cfg == nil {
		return nil
	}
	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return errors.Wrapf(err, "invalid log level %q", cfg.Level)
		}
		Log.SetLevel(level)
	}

	switch cfg.Format {
	case "", "text":
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: cfg.FullTimestamp,
			DisableColors: cfg.DisableColors,
		})
	case "json":
		Log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", cfg.Format)
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}
	Log.SetOutput(out)
	return nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "null":
		return io.Discard, nil
	}
	fp, err := os.OpenFile(target, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open log file %s", target)
	}
	return fp, nil
}

func (l *StompLogger) setCommonFields() *logrus.Entry {
	// skip setCommonFields and the level method
	_, file, _, ok := runtime.Caller(2)
	if !ok {
		return logrus.NewEntry(l.Logger)
	}
	return l.WithFields(logrus.Fields{
		"package":  path.Base(path.Dir(file)),
		"fileName": path.Base(file),
	})
}

func (l *StompLogger) Debug(args ...interface{}) {
	l.setCommonFields().Debug(args...)
}

func (l *StompLogger) Debugf(format string, args ...interface{}) {
	l.setCommonFields().Debugf(format, args...)
}

func (l *StompLogger) Info(args ...interface{}) {
	l.setCommonFields().Info(args...)
}

func (l *StompLogger) Infof(format string, args ...interface{}) {
	l.setCommonFields().Infof(format, args...)
}

func (l *StompLogger) Warn(args ...interface{}) {
	l.setCommonFields().Warn(args...)
}

func (l *StompLogger) Warnf(format string, args ...interface{}) {
	l.setCommonFields().Warnf(format, args...)
}

func (l *StompLogger) Error(args ...interface{}) {
	l.setCommonFields().Error(args...)
}

func (l *StompLogger) Errorf(format string, args ...interface{}) {
	l.setCommonFields().Errorf(format, args...)
}

// WithConnection returns an entry tagged with a connection id and peer address.
func (l *StompLogger) WithConnection(connId, remote string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"conn":   connId,
		"remote": remote,
	})
}
