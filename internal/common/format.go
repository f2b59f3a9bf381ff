// Package common holds small helpers shared by the naming and WebDAV layers.
package common

import (
	"path"
	"strconv"
	"strings"
)

// PadZero pads an integer with leading zeros to reach the specified width.
// Negative numbers keep their sign in front of the padding.
func PadZero(n, width int) string {
	if n < 0 {
		return "-" + PadZero(-n, width-1)
	}
	s := strconv.Itoa(n)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// CleanPath normalizes a slash path by cleaning it and ensuring it starts with /.
func CleanPath(p string) string {
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
