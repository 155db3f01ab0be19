package utils

import "strings"

// ExtractDomainFromEmail returns the lowercased domain of an address,
// tolerating "Name <email@domain.com>" forms. Empty string when the input
// does not look like an address.
func ExtractDomainFromEmail(email string) string {
	if email == "" {
		return ""
	}

	email = strings.TrimSpace(email)

	if strings.Contains(email, "<") && strings.Contains(email, ">") {
		startIdx := strings.LastIndex(email, "<") + 1
		endIdx := strings.LastIndex(email, ">")
		if startIdx > 0 && endIdx > startIdx {
			email = email[startIdx:endIdx]
		}
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// NormalizeEmailAddress lowercases and trims an address for lookups, and
// strips a surrounding angle-bracket envelope form if present.
func NormalizeEmailAddress(email string) string {
	email = strings.TrimSpace(email)
	email = strings.TrimPrefix(email, "<")
	email = strings.TrimSuffix(email, ">")
	return strings.ToLower(strings.TrimSpace(email))
}
