// Package format holds small helpers for rendering and reading values.
package format

import (
	"strings"
	"unicode/utf8"

	"github.com/acarl005/stripansi"
	"golang.org/x/text/encoding/charmap"
)

// DecodeText returns data as a string, decoding it as Windows-1252 when it is
// not valid UTF-8.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(decoded)
}

// CleanText makes matched text safe to print on a single terminal line.
func CleanText(data []byte) string {
	text := stripansi.Strip(DecodeText(data))
	return strings.NewReplacer("\r", `\r`, "\n", `\n`, "\t", `\t`).Replace(text)
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
