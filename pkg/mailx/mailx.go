// Package mailx sends transactional email. Senders compose: an SMTPSender
// does the delivery, ReliableSender adds retries and a circuit breaker, and
// ResetMailer turns a reset link into a message.
package mailx

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/textproto"
	"strings"
)

var (
	ErrNoRecipient    = errors.New("mailx: message has no recipient")
	ErrNoSender       = errors.New("mailx: message has no sender")
	ErrInvalidAddress = errors.New("mailx: invalid address")
)

// Message is a single multipart/alternative email.
type Message struct {
	From    string // "Name <addr>" or a bare address
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	if strings.TrimSpace(m.From) == "" {
		return ErrNoSender
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: to: %w", ErrInvalidAddress, err)
	}
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("%w: from: %w", ErrInvalidAddress, err)
	}
	return nil
}

// Permanent reports whether err will fail the same way on every attempt: a
// malformed message, or a 5xx reply from the relay.
func Permanent(err error) bool {
	if errors.Is(err, ErrNoRecipient) || errors.Is(err, ErrNoSender) || errors.Is(err, ErrInvalidAddress) {
		return true
	}
	var reply *textproto.Error
	return errors.As(err, &reply) && reply.Code >= 500 && reply.Code < 600
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
