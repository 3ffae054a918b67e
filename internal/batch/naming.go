package batch

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxNameBytes bounds the sanitized stem so "<stem>_<row>.<ext>" stays well
// under common 255-byte file name limits.
const maxNameBytes = 120

// SanitizeName turns a raw name into a file name stem. Control characters,
// path separators and characters Windows reserves (<>:"|?*) are removed,
// whitespace becomes '_', and leading or trailing dots are trimmed. An empty
// result becomes "row".
func SanitizeName(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == utf8.RuneError, unicode.IsControl(r):
		case r == '/', r == '\\':
		case strings.ContainsRune(`<>:"|?*`, r):
		case unicode.IsSpace(r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), ".")
	if len(s) > maxNameBytes {
		cut := maxNameBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	if s == "" {
		return "row"
	}
	return s
}

// OutputName returns "<sanitized>_<row>.<ext>". The row suffix keeps names
// unique even when input names repeat.
func OutputName(raw string, row int, ext string) string {
	return SanitizeName(raw) + "_" + strconv.Itoa(row) + "." + ext
}
