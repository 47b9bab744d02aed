package kwp

import (
	"fmt"
	"strconv"
	"strings"
)

// Dump formats b as space separated hex bytes, e.g. " 01 8A"
func Dump(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		fmt.Fprintf(&sb, " %02X", c)
	}
	return sb.String()
}

// DumpMixedContent prints printable runs as text and everything else as $XX
func DumpMixedContent(b []byte) string {
	mode := '?'
	var sb strings.Builder
	for _, c := range b {
		if c >= 32 && c <= 126 {
			if mode == 'X' {
				sb.WriteByte(' ')
			}
			mode = 'A'
			sb.WriteByte(c)
		} else {
			if mode != '?' {
				sb.WriteByte(' ')
			}
			mode = 'X'
			fmt.Fprintf(&sb, "$%02X", c)
		}
	}
	return sb.String()
}

// ParseUint parses decimal numbers, $-prefixed and 0x-prefixed hex numbers
func ParseUint(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	base := 10
	switch {
	case strings.HasPrefix(s, "$"):
		s, base = s[1:], 16
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return uint32(v), nil
}
