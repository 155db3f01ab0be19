// Package extract scans normalized email content for structured signals:
// at most one numeric verification code and any number of action links.
// Both scans are pure functions over their input; patterns are package-level
// compiled regexps but carry no match-position state, so concurrent calls
// never interfere.
package extract

import (
	"regexp"
	"strings"
)

// Signals holds what was recognized in one message. Code is empty when no
// labeled 4-8 digit code was found; Links is nil when no action link was
// found. Both are normal outcomes, not errors: most emails carry neither.
type Signals struct {
	Code  string
	Links []string
}

// codePattern pairs a compiled pattern with the index of the capture group
// holding the digits.
type codePattern struct {
	re    *regexp.Regexp
	group int
}

// codePatterns is a single prioritized policy table: patterns are evaluated
// in order and the first match anywhere in the content wins. Every pattern
// anchors its digit group to exactly 4-8 digits, so a 3-digit error code or
// a 9-digit phone number next to the word "code" never matches. There is no
// fallback to an unlabeled bare number; false positives from prices, years
// and order numbers cost more than the recall we give up.
var codePatterns = []codePattern{
	// Keyword then number: "code: 123456", "your verification code is 123456".
	// The optional tag run lets "code is <strong>654321</strong>" match when
	// the extractor sees raw HTML.
	{regexp.MustCompile(`(?i)(?:code|otp|pin|passcode|password|verification)(?:\s+is)?[:\s]+(?:<[^>]+>\s*)*(\d{4,8})\b`), 1},
	// Imperative forms: "enter code 123456", "use pin: 1234".
	{regexp.MustCompile(`(?i)(?:enter|use|your)\s+(?:code|otp|pin)[:\s]+(?:<[^>]+>\s*)*(\d{4,8})\b`), 1},
	// Number then keyword: "123456 is your code".
	{regexp.MustCompile(`(?i)\b(\d{4,8})(?:\s*</?[^>]+>)*\s+(?:is\s+(?:your|the)\s+)?(?:code|otp|pin|verification)\b`), 1},
	// Explicit labels: "verification: 123456", "one-time password: 123456".
	{regexp.MustCompile(`(?i)(?:verification|one[-\s]?time\s+pass(?:word|code))\s*[:：]\s*(\d{4,8})\b`), 1},
	// Chinese labels with optional punctuation: "验证码：123456".
	{regexp.MustCompile(`(?:验证码|校验码|动态码|安全码)[^0-9]{0,8}(\d{4,8})\b`), 1},
	// Reversed Chinese form: "123456是您的验证码".
	{regexp.MustCompile(`\b(\d{4,8})[^0-9]{0,4}(?:是您的|是你的)?(?:验证码|校验码|动态码|安全码)`), 1},
}

// linkPatterns each target one keyword family in the URL path or query.
// Only http(s) URLs are ever considered. Matches are collected per family
// in order of appearance, then deduplicated across families by exact string.
var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://[^\s<>"']*(?:verify|confirm|activat|validat|auth)[^\s<>"']*`),
	regexp.MustCompile(`(?i)https?://[^\s<>"']*(?:reset|password|recover)[^\s<>"']*`),
	regexp.MustCompile(`(?i)https?://[^\s<>"']*(?:magic|login|signin|sign-in)[^\s<>"']*`),
	regexp.MustCompile(`(?i)https?://[^\s<>"']*[?&](?:token|code|key)=[^\s<>"']*`),
	regexp.MustCompile(`(?i)https?://[^\s<>"']*(?:unsubscribe|opt-out|optout)[^\s<>"']*`),
}

// trailingPunct is stripped from the end of matched URLs; sentences and
// markup routinely butt punctuation up against a link.
const trailingPunct = ".,;:!?)]}>"

// Extract scans the space-joined concatenation of the plain-text and HTML
// bodies, so a code that only appears inside markup (say, in a <strong> tag)
// is still reachable. Pass html as the empty string when the message had no
// HTML part.
func Extract(text, html string) Signals {
	content := text
	if html != "" {
		content = text + " " + html
	}
	if content == "" {
		return Signals{}
	}
	return Signals{
		Code:  extractCode(content),
		Links: extractLinks(content),
	}
}

func extractCode(content string) string {
	for _, p := range codePatterns {
		if m := p.re.FindStringSubmatch(content); m != nil {
			return m[p.group]
		}
	}
	return ""
}

func extractLinks(content string) []string {
	var links []string
	seen := make(map[string]struct{})

	for _, re := range linkPatterns {
		for _, match := range re.FindAllString(content, -1) {
			url := strings.TrimRight(match, trailingPunct)
			if url == "" {
				continue
			}
			if _, dup := seen[url]; dup {
				continue
			}
			seen[url] = struct{}{}
			links = append(links, url)
		}
	}
	return links
}
