package mailparse

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
)

var (
	qpSoftBreakRe = regexp.MustCompile(`=\r?\n`)
	qpHexRe       = regexp.MustCompile(`=([0-9A-Fa-f]{2})`)
)

// DecodeQuotedPrintable removes soft line breaks and substitutes =XX escapes
// with their raw bytes. Escapes are replaced byte-wise so that multi-byte
// UTF-8 sequences (=E4=BD=A0) reassemble correctly.
func DecodeQuotedPrintable(s string) string {
	s = qpSoftBreakRe.ReplaceAllString(s, "")
	return qpHexRe.ReplaceAllStringFunc(s, func(m string) string {
		b, err := strconv.ParseUint(m[1:], 16, 8)
		if err != nil {
			return m
		}
		return string([]byte{byte(b)})
	})
}

// DecodeBase64 strips whitespace and decodes. Undecodable input is returned
// as-is: a garbled body is better than a lost email.
func DecodeBase64(s string) string {
	stripped := strings.Join(strings.Fields(s), "")
	decoded, err := base64.StdEncoding.DecodeString(stripped)
	if err != nil {
		return s
	}
	return string(decoded)
}
