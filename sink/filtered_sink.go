// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package sink

import (
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// FilteredSink only forwards messages whose destination matches one of
// its glob patterns, e.g. "/queue/*" or "/topic/**".
type FilteredSink struct {
	next     MessageSink
	patterns []glob.Glob
}

// NewFilteredSink compiles patterns with '/' as separator. With no
// patterns every destination is allowed.
func NewFilteredSink(next MessageSink, patterns []string) (*FilteredSink, error) {
	s := &FilteredSink{next: next}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid destination pattern %q", p)
		}
		s.patterns = append(s.patterns, g)
	}
	return s, nil
}

func (s *FilteredSink) Allowed(destination string) bool {
	if len(s.patterns) == 0 {
		return true
	}
	for _, g := range s.patterns {
		if g.Match(destination) {
			return true
		}
	}
	return false
}

func (s *FilteredSink) Send(destination string, body []byte) error {
	if !s.Allowed(destination) {
		return ErrDestinationNotAllowed
	}
	return s.next.Send(destination, body)
}
