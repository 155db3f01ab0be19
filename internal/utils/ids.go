package utils

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateNanoIDWithPrefix returns a typed entity ID like "email_x7k...".
func GenerateNanoIDWithPrefix(prefix string, length int) string {
	id, err := gonanoid.Generate(idAlphabet, length)
	if err != nil {
		// gonanoid only fails on a broken random source; fall back to a
		// timestamp-based ID rather than crashing an insert path.
		id = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%s_%s", prefix, id)
}

// GenerateToken returns an opaque bearer token for mailbox access.
func GenerateToken(length int) string {
	token, err := gonanoid.New(length)
	if err != nil {
		return GenerateNanoIDWithPrefix("tok", length)
	}
	return token
}

// Now returns the current UTC time truncated to microseconds, matching
// postgres timestamp precision so round-tripped values compare equal.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func NowPtr() *time.Time {
	now := Now()
	return &now
}
