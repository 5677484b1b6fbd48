// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"bufio"
	"io"
	"time"
)

type RawConnection interface {
	// Reads a single line including its terminator. Fails with
	// ErrLineTooLong once more than maxLength bytes (plus a CRLF) are
	// buffered without finding the terminator.
	ReadLine(maxLength int) (string, error)
	// Reads a single body byte
	ReadByte() (byte, error)
	// Writes an encoded frame
	Write(p []byte) (int, error)
	// Set deadline for the next read
	SetReadDeadline(t time.Time) error
	// Address of the remote peer
	RemoteAddr() string
	// Close the connection
	Close() error
}

type RawConnectionListener interface {
	// Blocks until a new RawConnection is established.
	Accept() (RawConnection, error)
	// Stops the connection listener.
	Close() error
}

// deadlineSetter is implemented by transports that support read deadlines.
type deadlineSetter interface {
	SetReadDeadline(t time.Time) error
}

// streamConnection adapts a byte stream to RawConnection.
type streamConnection struct {
	stream io.ReadWriteCloser
	reader *bufio.Reader
	remote string
}

func newStreamConnection(stream io.ReadWriteCloser, remote string) *streamConnection {
	return &streamConnection{
		stream: stream,
		reader: bufio.NewReader(stream),
		remote: remote,
	}
}

func (c *streamConnection) ReadLine(maxLength int) (string, error) {
	// room for the CRLF terminator
	limit := maxLength + 2
	var line []byte
	for {
		chunk, err := c.reader.ReadSlice('\n')
		line = append(line, chunk...)
		if err == nil {
			if len(line) > limit {
				return string(line[:limit]), ErrLineTooLong
			}
			return string(line), nil
		}
		if len(line) > limit {
			return string(line[:limit]), ErrLineTooLong
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF && len(line) > 0 {
			return string(line), io.ErrUnexpectedEOF
		}
		return string(line), err
	}
}

func (c *streamConnection) ReadByte() (byte, error) {
	return c.reader.ReadByte()
}

func (c *streamConnection) Write(p []byte) (int, error) {
	return c.stream.Write(p)
}

func (c *streamConnection) SetReadDeadline(t time.Time) error {
	if ds, ok := c.stream.(deadlineSetter); ok {
		return ds.SetReadDeadline(t)
	}
	return nil
}

func (c *streamConnection) RemoteAddr() string {
	return c.remote
}

func (c *streamConnection) Close() error {
	return c.stream.Close()
}
