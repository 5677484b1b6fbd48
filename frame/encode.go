// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

import "strings"

var (
	headerEncoder = strings.NewReplacer(
		"\\", "\\\\",
		"\n", "\\n",
		":", "\\c",
	)
	headerDecoder = strings.NewReplacer(
		"\\n", "\n",
		"\\c", ":",
		"\\\\", "\\",
	)
)

// EncodeHeaderString escapes the characters that have a meaning inside
// a header line.
func EncodeHeaderString(s string) string {
	return headerEncoder.Replace(s)
}

// DecodeHeaderString reverses EncodeHeaderString.
func DecodeHeaderString(s string) string {
	return headerDecoder.Replace(s)
}
