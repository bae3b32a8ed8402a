package pathnorm

import (
	"fmt"
	"strings"
)

// cygdrivePrefix is the mount point csync2 uses for native drive letters.
const cygdrivePrefix = "/cygdrive/"

// Normalize converts a native path into csync2's portable form.
// A leading drive prefix such as `C:\` becomes `/cygdrive/c/` and every
// backslash becomes a forward slash. Case is otherwise preserved.
// Normalize is idempotent.
func Normalize(nativePath string) string {
	p := nativePath
	if hasDrivePrefix(p) {
		drive := strings.ToLower(p[:1])
		p = cygdrivePrefix + drive + "/" + p[3:]
	}
	return strings.ReplaceAll(p, `\`, "/")
}

// hasDrivePrefix reports whether p starts with a letter, a colon and a backslash.
func hasDrivePrefix(p string) bool {
	if len(p) < 3 || p[1] != ':' || p[2] != '\\' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// needsEscape matches the characters csync2 escapes in database filenames:
// control characters, space, DEL and "'%$:|.
func needsEscape(c byte) bool {
	if c >= 0x01 && c <= 0x20 {
		return true
	}
	switch c {
	case 0x7f, '"', '\'', '%', '$', ':', '|':
		return true
	}
	return false
}

// Encode percent-escapes a path the way csync2 stores filenames.
func Encode(p string) string {
	var builder strings.Builder
	builder.Grow(len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		if needsEscape(c) {
			fmt.Fprintf(&builder, "%%%02X", c)
			continue
		}
		builder.WriteByte(c)
	}
	return builder.String()
}

// Decode reverses Encode. Malformed escapes are copied through unchanged.
func Decode(p string) string {
	var builder strings.Builder
	builder.Grow(len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == '%' && i+2 < len(p) {
			if hi, ok := unhex(p[i+1]); ok {
				if lo, ok := unhex(p[i+2]); ok {
					builder.WriteByte(hi<<4 | lo)
					i += 2
					continue
				}
			}
		}
		builder.WriteByte(p[i])
	}
	return builder.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
