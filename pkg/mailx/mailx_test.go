package mailx_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/quackwell/pkg/mailx"
	"github.com/stretchr/testify/require"
)

func testMessage() mailx.Message {
	return mailx.Message{
		From:    `"Quackwell Support" <support@example.com>`,
		To:      "alice@example.com",
		Subject: "Hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	}
}

func TestResetMessage(t *testing.T) {
	m := mailx.ResetMailer{From: "support@example.com"}

	msg, err := m.ResetMessage("alice@example.com", "https://app.example.com/reset-password/tok")
	require.NoError(t, err)
	require.Equal(t, mailx.ResetSubject, msg.Subject)
	require.Equal(t, `"Quackwell Support" <support@example.com>`, msg.From)
	require.Equal(t, "alice@example.com", msg.To)
	require.Contains(t, msg.Text, "https://app.example.com/reset-password/tok")
	require.Contains(t, msg.Text, "expire in 1 hour")
	require.Contains(t, msg.HTML, `href="https://app.example.com/reset-password/tok"`)
	require.Contains(t, msg.HTML, "Quackwell Team")
}

func TestResetMailerSends(t *testing.T) {
	var got mailx.Message
	m := mailx.ResetMailer{
		From: "support@example.com",
		Sender: mailx.SenderFunc(func(_ context.Context, msg mailx.Message) error {
			got = msg
			return nil
		}),
	}

	require.NoError(t, m.SendPasswordResetEmail(context.Background(), "bob@example.com", "https://x/reset-password/t"))
	require.Equal(t, "bob@example.com", got.To)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := mailx.LogSender{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, s.Send(context.Background(), testMessage()))
	require.Contains(t, buf.String(), "alice@example.com")

	require.ErrorIs(t, s.Send(context.Background(), mailx.Message{From: "a@b.c"}), mailx.ErrNoRecipient)
}

func TestRender(t *testing.T) {
	body, err := mailx.Render(testMessage(), time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	s := string(body)
	require.Contains(t, s, "To: alice@example.com\r\n")
	require.Contains(t, s, "Subject: Hello\r\n")
	require.Contains(t, s, "Content-Type: multipart/alternative;")
	require.Contains(t, s, "plain body")
	require.Contains(t, s, "<p>html body</p>")
}

func TestReliableSenderRetries(t *testing.T) {
	calls := 0
	next := mailx.SenderFunc(func(context.Context, mailx.Message) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})

	s := mailx.NewReliableSender(next, mailx.ReliableOptions{Attempts: 3, Delay: time.Millisecond})
	require.NoError(t, s.Send(context.Background(), testMessage()))
	require.Equal(t, 3, calls)
}

func TestReliableSenderOpensBreaker(t *testing.T) {
	calls := 0
	boom := errors.New("relay down")
	next := mailx.SenderFunc(func(context.Context, mailx.Message) error {
		calls++
		return boom
	})

	s := mailx.NewReliableSender(next, mailx.ReliableOptions{
		Attempts:    1,
		Delay:       time.Millisecond,
		TripAfter:   2,
		OpenTimeout: time.Minute,
	})

	require.ErrorIs(t, s.Send(context.Background(), testMessage()), boom)
	require.ErrorIs(t, s.Send(context.Background(), testMessage()), boom)
	require.Equal(t, "open", s.State())

	err := s.Send(context.Background(), testMessage())
	require.ErrorIs(t, err, mailx.ErrUnavailable)
	require.Equal(t, 2, calls)
}

func TestReliableSenderValidates(t *testing.T) {
	s := mailx.NewReliableSender(mailx.SenderFunc(func(context.Context, mailx.Message) error {
		t.Fatal("should not be called")
		return nil
	}), mailx.ReliableOptions{})

	require.ErrorIs(t, s.Send(context.Background(), mailx.Message{To: "a@b.c"}), mailx.ErrNoSender)

	msg := testMessage()
	msg.To = "bad@@example.com"
	require.ErrorIs(t, s.Send(context.Background(), msg), mailx.ErrInvalidAddress)
	require.Equal(t, "closed", s.State())
}

func TestReliableSenderPermanentErrorsKeepBreakerClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"invalid address", fmt.Errorf("%w: to: missing @", mailx.ErrInvalidAddress)},
		{"mailbox unavailable", fmt.Errorf("mailx: RCPT TO: %w", &textproto.Error{Code: 550, Msg: "no such user"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			next := mailx.SenderFunc(func(context.Context, mailx.Message) error {
				calls++
				return tt.err
			})

			s := mailx.NewReliableSender(next, mailx.ReliableOptions{
				Attempts:    3,
				Delay:       time.Millisecond,
				TripAfter:   2,
				OpenTimeout: time.Minute,
			})

			for range 5 {
				err := s.Send(context.Background(), testMessage())
				require.True(t, mailx.Permanent(err), "got %v", err)
				require.NotErrorIs(t, err, mailx.ErrUnavailable)
			}
			require.Equal(t, 5, calls, "permanent errors are not retried")
			require.Equal(t, "closed", s.State())
		})
	}
}

func TestPermanent(t *testing.T) {
	require.True(t, mailx.Permanent(mailx.ErrNoRecipient))
	require.True(t, mailx.Permanent(fmt.Errorf("wrap: %w", mailx.ErrInvalidAddress)))
	require.True(t, mailx.Permanent(&textproto.Error{Code: 554, Msg: "rejected"}))
	require.False(t, mailx.Permanent(&textproto.Error{Code: 451, Msg: "try later"}))
	require.False(t, mailx.Permanent(errors.New("connection reset")))
	require.False(t, mailx.Permanent(nil))
}

// fakeSMTP accepts one plaintext session and records the envelope.
type fakeSMTP struct {
	ln   net.Listener
	wg   sync.WaitGroup
	from string
	rcpt string
	data string
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeSMTP{ln: ln}
	f.wg.Add(1)
	go f.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return f
}

func (f *fakeSMTP) serve() {
	defer f.wg.Done()

	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(s string) { _, _ = io.WriteString(conn, s+"\r\n") }

	reply("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)

		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250-fake")
			reply("250 8BITMIME")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			f.from = cmd[len("MAIL FROM:"):]
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			f.rcpt = cmd[len("RCPT TO:"):]
			reply("250 OK")
		case upper == "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			f.data = b.String()
			reply("250 queued")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func TestSMTPSender(t *testing.T) {
	srv := startFakeSMTP(t)
	host, portStr, err := net.SplitHostPort(srv.ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	s := mailx.NewSMTPSender(mailx.SMTPConfig{Host: host, Port: port, Timeout: 5 * time.Second})
	require.NoError(t, s.Send(context.Background(), testMessage()))

	srv.wg.Wait()
	require.Contains(t, srv.from, "support@example.com")
	require.Contains(t, srv.rcpt, "alice@example.com")
	require.Contains(t, srv.data, "plain body")
}

func TestSMTPSenderRejectsBadAddress(t *testing.T) {
	s := mailx.NewSMTPSender(mailx.SMTPConfig{Host: "127.0.0.1", Port: 1})

	msg := testMessage()
	msg.To = "not an address"
	require.ErrorIs(t, s.Send(context.Background(), msg), mailx.ErrInvalidAddress)
}
