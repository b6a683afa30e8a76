package alerting

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, digest Digest) error
}

// EmailOptions parameterise the SMTP notifier.
type EmailOptions struct {
	Host       string
	Port       int
	Username   string
	Password   string
	SenderName string
	Timeout    time.Duration
}

// EmailNotifier 通过 SMTP(STARTTLS) 推送分组告警邮件。
type EmailNotifier struct {
	opts   EmailOptions
	logger zerolog.Logger
	// send is swappable for tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier constructs an SMTP notifier.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.SenderName == "" {
		opts.SenderName = "Metrics Bot"
	}
	return &EmailNotifier{
		opts:   opts,
		logger: logger.With().Str("component", "alert_email").Logger(),
		send:   smtp.SendMail,
	}
}

// Notify delivers one digest to its recipient. smtp.SendMail negotiates
// STARTTLS when the server advertises it.
func (n *EmailNotifier) Notify(ctx context.Context, digest Digest) error {
	if n.opts.Host == "" || n.opts.Port == 0 {
		return fmt.Errorf("smtp host/port not configured")
	}
	if digest.Recipient == "" {
		return fmt.Errorf("digest has no recipient")
	}

	msg, err := buildMessage(n.opts, digest)
	if err != nil {
		return fmt.Errorf("build email message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", n.opts.Host, n.opts.Port)
	var auth smtp.Auth
	if n.opts.Username != "" {
		auth = smtp.PlainAuth("", n.opts.Username, n.opts.Password, n.opts.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- n.send(addr, auth, n.opts.Username, []string{digest.Recipient}, msg)
	}()

	timer := time.NewTimer(n.opts.Timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("smtp send timed out after %s", n.opts.Timeout)
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", digest.Recipient, err)
		}
	}

	n.logger.Info().
		Str("recipient", digest.Recipient).
		Int("triggers", len(digest.Triggers)).
		Msg("告警邮件已发送")
	return nil
}

// buildMessage assembles a multipart/alternative MIME message carrying the
// plain-text body with an HTML alternative.
func buildMessage(opts EmailOptions, digest Digest) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	textPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(RenderText(digest))); err != nil {
		return nil, err
	}

	htmlPart, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=UTF-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write([]byte(RenderHTML(digest))); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	headers := strings.Builder{}
	headers.WriteString(fmt.Sprintf("From: %s <%s>\r\n", opts.SenderName, opts.Username))
	headers.WriteString(fmt.Sprintf("To: %s\r\n", digest.Recipient))
	headers.WriteString(fmt.Sprintf("Subject: %s\r\n", digest.Subject))
	headers.WriteString("MIME-Version: 1.0\r\n")
	headers.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", writer.Boundary()))
	headers.WriteString("\r\n")

	return append([]byte(headers.String()), body.Bytes()...), nil
}

var _ Notifier = (*EmailNotifier)(nil)
