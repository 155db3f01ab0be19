// Package mailparse decodes raw inbound email payloads into normalized
// plain-text and HTML bodies. It is deliberately not an RFC 5322/MIME
// parser: delivery platforms hand us whatever the sending side produced,
// and losing an email is worse than storing an imperfect rendering of it,
// so every malformed-input path degrades to best-effort output and nothing
// in this package ever returns an error.
//
// Known limitations, accepted by design: folded (continuation) header lines
// are not unfolded, nested multiparts are flattened by the boundary split,
// and charset parameters other than UTF-8 are ignored.
package mailparse

import (
	"regexp"
	"strings"
)

// Body is the normalized rendering of a message body. Text is always
// populated (derived from HTML when no plain-text part exists); HTML is
// empty unless an HTML part or HTML single-part body was found.
type Body struct {
	Text string
	HTML string
}

// Envelope is the normalized view of one inbound message.
type Envelope struct {
	Sender  Address
	Subject string
	Body    Body
}

// NoSubject is stored when a message carries no Subject header.
const NoSubject = "(no subject)"

var (
	subjectRe   = regexp.MustCompile(`(?im)^subject:[ \t]*(.*)$`)
	boundaryRe  = regexp.MustCompile(`(?i)boundary="?([^"\r\n;]+)"?`)
	htmlTypeRe  = regexp.MustCompile(`(?i)content-type:\s*text/html`)
	plainTypeRe = regexp.MustCompile(`(?i)content-type:\s*text/plain`)
	qpEncRe     = regexp.MustCompile(`(?i)content-transfer-encoding:\s*quoted-printable`)
	b64EncRe    = regexp.MustCompile(`(?i)content-transfer-encoding:\s*base64`)
)

// Normalize parses a fully materialized raw message (headers + body) and the
// From header value as delivered by the transport layer. It never fails.
func Normalize(raw, fromHeader string) Envelope {
	env := Envelope{
		Sender:  ParseAddress(fromHeader),
		Subject: NoSubject,
	}
	if m := subjectRe.FindStringSubmatch(raw); m != nil {
		env.Subject = strings.TrimSpace(m[1])
	}
	env.Body = extractBody(raw)
	return env
}

func extractBody(raw string) Body {
	if m := boundaryRe.FindStringSubmatch(raw); m != nil {
		return multipartBody(raw, strings.TrimSpace(m[1]))
	}
	return singlePartBody(raw)
}

// singlePartBody handles messages without a multipart boundary. The content
// type and transfer encoding are sniffed from the whole payload, the body is
// everything after the first blank line, or the whole payload when no
// separator exists.
func singlePartBody(raw string) Body {
	decoded := decodeTransfer(afterHeaders(raw), raw)
	if htmlTypeRe.MatchString(raw) {
		return Body{Text: HTMLToText(decoded), HTML: decoded}
	}
	return Body{Text: strings.TrimSpace(decoded)}
}

// multipartBody splits the payload on the boundary delimiter and walks the
// segments. The first text/plain segment wins; the last text/html segment
// wins, so a later HTML rendering overwrites an earlier one. When no plain
// segment exists the text is derived from the HTML.
func multipartBody(raw, boundary string) Body {
	var body Body
	foundPlain := false

	for _, segment := range strings.Split(raw, "--"+boundary) {
		trimmed := strings.TrimSpace(segment)
		if trimmed == "" || trimmed == "--" {
			continue
		}

		switch {
		case plainTypeRe.MatchString(segment):
			if !foundPlain {
				body.Text = strings.TrimSpace(decodeTransfer(afterHeaders(segment), segment))
				foundPlain = true
			}
		case htmlTypeRe.MatchString(segment):
			body.HTML = strings.TrimSpace(decodeTransfer(afterHeaders(segment), segment))
		}
	}

	if !foundPlain && body.HTML != "" {
		body.Text = HTMLToText(body.HTML)
	}
	return body
}

// afterHeaders returns everything past the first blank-line separator, or the
// whole input when none is found.
func afterHeaders(s string) string {
	if idx := strings.Index(s, "\r\n\r\n"); idx >= 0 {
		return s[idx+4:]
	}
	if idx := strings.Index(s, "\n\n"); idx >= 0 {
		return s[idx+2:]
	}
	return s
}

// decodeTransfer applies the transfer encoding declared anywhere in scope
// (the full payload for single-part messages, the segment for multipart
// ones). Unknown encodings pass through untouched.
func decodeTransfer(body, scope string) string {
	switch {
	case qpEncRe.MatchString(scope):
		return DecodeQuotedPrintable(body)
	case b64EncRe.MatchString(scope):
		return DecodeBase64(body)
	}
	return body
}
