package mailx

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	textTemplate "text/template"
)

const ResetSubject = "Password Reset Request"

var resetHTML = template.Must(template.New("reset.html").Parse(`<p>Hello,</p>
<p>We received a request to reset your password. Click the link below to set a new password:</p>
<p><a href="{{.Link}}" style="color: blue; text-decoration: underline;">Reset Your Password</a></p>
<p>This link will expire in 1 hour. If you did not request a password reset, please ignore this email.</p>
<p>Thank you,<br>{{.Product}} Team</p>
`))

var resetText = textTemplate.Must(textTemplate.New("reset.txt").Parse(`Hello,

We received a request to reset your password. Copy and paste the link below into your browser to set a new password:
{{.Link}}

This link will expire in 1 hour. If you did not request a password reset, please ignore this email.

Thank you,
{{.Product}} Team
`))

// ResetMailer composes and sends password reset emails.
type ResetMailer struct {
	Sender  Sender
	From    string // bare address; the display name is "<Product> Support"
	Product string
}

// ResetMessage builds the reset email for address.
func (m ResetMailer) ResetMessage(address, link string) (Message, error) {
	product := m.Product
	if product == "" {
		product = "Quackwell"
	}
	data := struct{ Link, Product string }{link, product}

	var html, text strings.Builder
	if err := resetHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("mailx: render reset html: %w", err)
	}
	if err := resetText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("mailx: render reset text: %w", err)
	}

	return Message{
		From:    fmt.Sprintf("%q <%s>", product+" Support", m.From),
		To:      address,
		Subject: ResetSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// SendPasswordResetEmail implements the service mailer port.
func (m ResetMailer) SendPasswordResetEmail(ctx context.Context, address, link string) error {
	msg, err := m.ResetMessage(address, link)
	if err != nil {
		return err
	}
	return m.Sender.Send(ctx, msg)
}
