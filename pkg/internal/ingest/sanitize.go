package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// junk 需要移除的字符：除换行与制表符外的控制字符、BOM、非法编码.
// runes.Remove 会先把非法字节替换为 utf8.RuneError 再判断.
var junk = runes.Remove(runes.Predicate(func(r rune) bool {
	switch r {
	case '\n', '\t':
		return false
	case utf8.RuneError, '\uFEFF':
		return true
	}

	return unicode.IsControl(r)
}))

// sanitize 修复编码并去除首尾空白.
func sanitize(s string) string {
	if isPlainASCII(s) {
		return strings.TrimSpace(s)
	}

	out, _, err := transform.String(junk, s)
	if err != nil {
		return strings.TrimSpace(strings.ToValidUTF8(s, ""))
	}

	return strings.TrimSpace(out)
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= utf8.RuneSelf || (c < 0x20 && c != '\n' && c != '\t') || c == 0x7f {
			return false
		}
	}

	return true
}
