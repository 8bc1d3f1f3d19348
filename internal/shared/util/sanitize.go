package util

import (
	"path"
	"strings"
	"unicode"
)

// DefaultSourceName is used when an upload carries no usable file name.
const DefaultSourceName = "upload"

// SourceName reduces a client-supplied file name to its base name with
// control characters removed, so it is safe to echo in records and exports.
func SourceName(name string) string {
	s := strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	s = path.Base(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == "/" || s == ".." {
		return DefaultSourceName
	}
	return s
}
