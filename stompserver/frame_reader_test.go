// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmware/stompengine/frame"
)

// timeoutReader fails the first reads with a deadline error.
type timeoutReader struct {
	timeouts int
	r        io.Reader
}

func (r *timeoutReader) Read(p []byte) (int, error) {
	if r.timeouts > 0 {
		r.timeouts--
		return 0, os.ErrDeadlineExceeded
	}
	return r.r.Read(p)
}

func newTestFrameReader(input string, limits Limits) *FrameReader {
	return NewFrameReader(NewMockRawConnection(input), limits, 0)
}

func TestFrameReader_ReadFrame(t *testing.T) {
	r := newTestFrameReader("SEND\ndestination:/queue/a\nkey:a\\cb\n\nhello\x00\n", DefaultLimits())

	f, err := r.ReadFrame()
	require.NoError(t, err)

	assert.Equal(t, frame.SEND, f.Command)
	dest, _ := f.HeaderValue(frame.Destination)
	key, _ := f.HeaderValue("key")
	acceptVersion, _ := f.HeaderValue(frame.AcceptVersion)
	assert.Equal(t, "/queue/a", dest)
	assert.Equal(t, "a:b", key)
	assert.Equal(t, "1.0", acceptVersion)
	assert.Equal(t, []byte("hello"), f.Body())

	_, err = r.ReadFrame()
	assert.Equal(t, io.EOF, err)
}

func TestFrameReader_SequentialFrames(t *testing.T) {
	r := newTestFrameReader("CONNECT\n\n\x00\nSEND\ndestination:/a\n\n\x00DISCONNECT\n\n\x00\n", DefaultLimits())

	for _, expected := range []frame.Command{frame.CONNECT, frame.SEND, frame.DISCONNECT} {
		f, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, expected, f.Command)
	}
}

func TestFrameReader_CRLF(t *testing.T) {
	r := newTestFrameReader("\r\nCONNECT\r\nlogin:foo\r\n\r\n\x00\r\n", DefaultLimits())

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, frame.CONNECT, f.Command)
	login, _ := f.HeaderValue(frame.Login)
	assert.Equal(t, "foo", login)
}

func TestFrameReader_DuplicateHeadersFirstWins(t *testing.T) {
	r := newTestFrameReader("CONNECT\nlogin:foo\nlogin:test\n\n\x00", DefaultLimits())

	f, err := r.ReadFrame()
	require.NoError(t, err)
	login, _ := f.HeaderValue(frame.Login)
	assert.Equal(t, "foo", login)
}

func TestFrameReader_CommandTooLong(t *testing.T) {
	r := newTestFrameReader("ABCDEFGHIJKLMNOPQRSTUVWXYZ\n\n\x00", DefaultLimits())
	_, err := r.ReadFrame()
	assert.Equal(t, ErrCommandTooLong, err)

	// exactly at the limit is accepted
	r = newTestFrameReader(strings.Repeat("A", DefaultMaxCommandLength)+"\n\n\x00", DefaultLimits())
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxCommandLength, len(f.Command))
}

func TestFrameReader_CommandTooLongWithoutTerminator(t *testing.T) {
	r := newTestFrameReader(strings.Repeat("A", 5000), DefaultLimits())
	_, err := r.ReadFrame()
	assert.Equal(t, ErrCommandTooLong, err)
}

func TestFrameReader_HeaderLineTooLong(t *testing.T) {
	limits := Limits{MaxHeaderLineLength: 10}
	r := newTestFrameReader("SEND\nkey:0123456789\n\n\x00", limits)
	_, err := r.ReadFrame()
	assert.Equal(t, ErrHeaderLineTooLong, err)

	r = newTestFrameReader("SEND\nkey:012345\n\n\x00", limits)
	_, err = r.ReadFrame()
	assert.NoError(t, err)
}

func TestFrameReader_TooManyHeaders(t *testing.T) {
	limits := Limits{MaxHeaderCount: 3}

	// three headers plus the injected accept-version
	r := newTestFrameReader("SEND\na:1\nb:2\nc:3\n\n\x00", limits)
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, 4, f.Header().Len())

	r = newTestFrameReader("SEND\na:1\nb:2\nc:3\nd:4\n\n\x00", limits)
	_, err = r.ReadFrame()
	assert.Equal(t, ErrTooManyHeaders, err)
}

func TestFrameReader_RepeatedHeaderLinesAreCapped(t *testing.T) {
	limits := Limits{MaxHeaderCount: 2}

	// repeats within the line budget keep the first value
	r := newTestFrameReader("SEND\na:1\na:2\na:3\n\n\x00", limits)
	f, err := r.ReadFrame()
	require.NoError(t, err)
	a, _ := f.HeaderValue("a")
	assert.Equal(t, "1", a)

	input := "CONNECT\n" + strings.Repeat("a:1\n", 5000) + "\n\x00"
	r = newTestFrameReader(input, limits)
	_, err = r.ReadFrame()
	assert.Equal(t, ErrTooManyHeaders, err)
}

func TestFrameReader_BodyTooLong(t *testing.T) {
	limits := Limits{MaxBodyLength: 4}

	r := newTestFrameReader("SEND\n\n1234\x00", limits)
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("1234"), f.Body())

	r = newTestFrameReader("SEND\n\n12345\x00", limits)
	_, err = r.ReadFrame()
	assert.Equal(t, ErrBodyTooLong, err)

	// no sentinel at all
	r = newTestFrameReader("SEND\n\n"+strings.Repeat("x", 100), limits)
	_, err = r.ReadFrame()
	assert.Equal(t, ErrBodyTooLong, err)
}

func TestFrameReader_MalformedHeader(t *testing.T) {
	r := newTestFrameReader("SEND\n:value\n\n\x00", DefaultLimits())
	_, err := r.ReadFrame()
	assert.Equal(t, frame.ErrMalformedHeader, err)
}

func TestFrameReader_UnexpectedEOF(t *testing.T) {
	for _, input := range []string{"SEND\n", "SEND\nkey:v", "SEND\n\nbody"} {
		r := newTestFrameReader(input, DefaultLimits())
		_, err := r.ReadFrame()
		assert.Equal(t, io.ErrUnexpectedEOF, err, input)
	}
}

func TestFrameReader_RetriesTimeoutBeforeFirstLine(t *testing.T) {
	conn := NewMockRawConnectionFromReader(&timeoutReader{
		timeouts: 3,
		r:        strings.NewReader("CONNECT\n\n\x00"),
	})
	r := NewFrameReader(conn, DefaultLimits(), time.Second)

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, frame.CONNECT, f.Command)
	assert.True(t, len(conn.stream.deadlines) >= 4)
}

func TestFrameReader_TimeoutInsideFrameIsFatal(t *testing.T) {
	conn := NewMockRawConnectionFromReader(io.MultiReader(
		strings.NewReader("SEND\n"),
		&timeoutReader{timeouts: 1, r: strings.NewReader("\n\x00")},
	))
	r := NewFrameReader(conn, DefaultLimits(), time.Second)

	_, err := r.ReadFrame()
	assert.True(t, isTimeout(err))
}

func TestStreamConnection_ReadLine(t *testing.T) {
	conn := NewMockRawConnection("short\n" + strings.Repeat("x", 10000) + "\nrest")

	line, err := conn.ReadLine(10)
	assert.NoError(t, err)
	assert.Equal(t, "short\n", line)

	line, err = conn.ReadLine(100)
	assert.Equal(t, ErrLineTooLong, err)
	assert.Len(t, line, 102)

	conn = NewMockRawConnection("rest")
	line, err = conn.ReadLine(100)
	assert.Equal(t, io.ErrUnexpectedEOF, err)
	assert.Equal(t, "rest", line)

	line, err = conn.ReadLine(100)
	assert.Equal(t, io.EOF, err)
	assert.Empty(t, line)
}

func TestLimits_Defaults(t *testing.T) {
	limits := Limits{MaxCommandLength: 5, MaxBodyLength: -1}.withDefaults()

	assert.Equal(t, 5, limits.MaxCommandLength)
	assert.Equal(t, DefaultMaxHeaderCount, limits.MaxHeaderCount)
	assert.Equal(t, DefaultMaxHeaderLineLength, limits.MaxHeaderLineLength)
	assert.Equal(t, DefaultMaxBodyLength, limits.MaxBodyLength)
}
