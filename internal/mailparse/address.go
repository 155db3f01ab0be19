package mailparse

import (
	"regexp"
	"strings"
)

// Address is a parsed mail address from a From/To header value.
type Address struct {
	Name  string
	Email string
}

// Matches `"Display Name" <addr>` or `Display Name <addr>`; the bare-address
// form is handled by the fallback in ParseAddress.
var addressRe = regexp.MustCompile(`^\s*(?:"([^"]*)"|([^<>"]*?))\s*<([^<>\s]+)>\s*$`)

// ParseAddress parses a raw header value into name and email. Malformed input
// never fails: anything that does not look like `name <addr>` is treated as a
// bare email address.
func ParseAddress(raw string) Address {
	if m := addressRe.FindStringSubmatch(raw); m != nil {
		name := m[1]
		if name == "" {
			name = strings.TrimSpace(m[2])
		}
		return Address{
			Name:  name,
			Email: strings.ToLower(strings.TrimSpace(m[3])),
		}
	}
	return Address{Email: strings.ToLower(strings.TrimSpace(raw))}
}
