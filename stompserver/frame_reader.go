// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"bytes"
	"io"
	"time"

	"github.com/vmware/stompengine/frame"
)

const nullByte = 0x00

// headerLineFactor caps the raw header lines of a frame, repeated keys
// included, at this multiple of MaxHeaderCount.
const headerLineFactor = 4

// FrameReader pulls complete frames off a RawConnection, enforcing the
// configured limits at each stage. It is owned by a single connection
// loop and is not safe for concurrent use.
type FrameReader struct {
	conn        RawConnection
	limits      Limits
	parser      *frame.HeaderParser
	readTimeout time.Duration
}

func NewFrameReader(conn RawConnection, limits Limits, readTimeout time.Duration) *FrameReader {
	return &FrameReader{
		conn:        conn,
		limits:      limits.withDefaults(),
		parser:      frame.NewHeaderParser(),
		readTimeout: readTimeout,
	}
}

// ReadFrame blocks until a full frame has been read. Keep-alive newlines
// between frames are skipped.
func (r *FrameReader) ReadFrame() (*frame.Frame, error) {
	commandLine, err := r.readCommandLine()
	if err != nil {
		return nil, err
	}

	headers, err := r.readHeaders()
	if err != nil {
		return nil, err
	}

	body, err := r.readBody()
	if err != nil {
		return nil, err
	}

	return frame.Decode(commandLine, headers, body), nil
}

func (r *FrameReader) readCommandLine() (string, error) {
	for {
		r.armDeadline()
		line, err := r.conn.ReadLine(r.limits.MaxCommandLength)
		if err == ErrLineTooLong {
			return "", ErrCommandTooLong
		}
		if err != nil {
			if isTimeout(err) && len(line) == 0 {
				// nothing has been received yet, keep waiting
				continue
			}
			return "", err
		}

		command := frame.TrimLineEnding(line)
		if len(command) == 0 {
			// heart-beat
			continue
		}
		if len(command) > r.limits.MaxCommandLength {
			return "", ErrCommandTooLong
		}
		return command, nil
	}
}

func (r *FrameReader) readHeaders() (*frame.Header, error) {
	r.parser.Reset()
	maxLines := r.limits.MaxHeaderCount * headerLineFactor
	for lines := 0; ; lines++ {
		r.armDeadline()
		line, err := r.conn.ReadLine(r.limits.MaxHeaderLineLength)
		if err == ErrLineTooLong {
			return nil, ErrHeaderLineTooLong
		}
		if err != nil {
			return nil, midFrame(err)
		}

		line = frame.TrimLineEnding(line)
		if len(line) == 0 {
			return r.parser.Finalize(), nil
		}
		if len(line) > r.limits.MaxHeaderLineLength {
			return nil, ErrHeaderLineTooLong
		}
		if r.parser.HeaderCount() >= r.limits.MaxHeaderCount || lines >= maxLines {
			return nil, ErrTooManyHeaders
		}
		if err := r.parser.ParseLine(line); err != nil {
			return nil, err
		}
	}
}

func (r *FrameReader) readBody() ([]byte, error) {
	var body bytes.Buffer
	for {
		b, err := r.conn.ReadByte()
		if err != nil {
			return nil, midFrame(err)
		}
		if b == nullByte {
			return body.Bytes(), nil
		}
		if int64(body.Len()) >= r.limits.MaxBodyLength {
			return nil, ErrBodyTooLong
		}
		body.WriteByte(b)
	}
}

func (r *FrameReader) armDeadline() {
	if r.readTimeout > 0 {
		r.conn.SetReadDeadline(time.Now().Add(r.readTimeout))
	}
}

// midFrame reports a clean end of stream inside a frame as truncation.
func midFrame(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
