package errors

import "github.com/pkg/errors"

var (
	// mailbox errors
	ErrMailboxNotFound = errors.New("mailbox not found")
	ErrMailboxExpired  = errors.New("mailbox expired")
	ErrInvalidToken    = errors.New("invalid or expired token")

	// email errors
	ErrEmailNotFound    = errors.New("email not found")
	ErrMessageTooLarge  = errors.New("message exceeds size limit")
	ErrUnknownRecipient = errors.New("no mailbox for recipient")
)
