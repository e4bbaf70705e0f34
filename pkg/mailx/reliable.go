package mailx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("mailx: mail relay unavailable")

// ReliableOptions tunes ReliableSender.
type ReliableOptions struct {
	Attempts     uint          // per Send, default 3
	Delay        time.Duration // first backoff, default 200ms
	TripAfter    uint32        // consecutive failed Sends before opening, default 5
	OpenTimeout  time.Duration // how long the breaker stays open, default 30s
	AttemptLimit time.Duration // per attempt, default 10s
}

// ReliableSender retries transient failures and stops calling a relay that
// keeps failing. Permanent errors are returned at once and do not count
// against the relay.
type ReliableSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
	opts ReliableOptions
}

func NewReliableSender(next Sender, opts ReliableOptions) *ReliableSender {
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = 200 * time.Millisecond
	}
	if opts.TripAfter == 0 {
		opts.TripAfter = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.AttemptLimit <= 0 {
		opts.AttemptLimit = 10 * time.Second
	}

	tripAfter := opts.TripAfter
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mail-relay",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || Permanent(err)
		},
	})

	return &ReliableSender{next: next, cb: cb, opts: opts}
}

func (s *ReliableSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(s.opts.Attempts),
			retry.Delay(s.opts.Delay),
			retry.LastErrorOnly(true),
		)

		return nil, r.Do(func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, s.opts.AttemptLimit)
			defer cancel()
			if err := s.next.Send(attemptCtx, msg); err != nil {
				if Permanent(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			return nil
		})
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// State reports the breaker state, for health output.
func (s *ReliableSender) State() string {
	return s.cb.State().String()
}
