package mail

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender delivers messages over SMTP.
type SMTPSender struct {
	client *gomail.Client
}

// NewSMTPSender creates an SMTP-backed sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []gomail.Option{gomail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{client: client}, nil
}

// Send delivers all messages over one SMTP session. A batch whose addresses
// cannot form valid messages fails permanently and is never retried; only
// delivery errors are transient.
func (s *SMTPSender) Send(ctx context.Context, messages []Message) error {
	msgs := make([]*gomail.Msg, 0, len(messages))
	for _, m := range messages {
		msg, err := buildMsg(m)
		if err != nil {
			return backoff.Permanent(err)
		}
		msgs = append(msgs, msg)
	}

	if err := s.client.DialAndSendWithContext(ctx, msgs...); err != nil {
		return fmt.Errorf("send messages: %w", err)
	}
	return nil
}

func buildMsg(m Message) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", m.From, err)
	}
	if err := msg.To(m.To...); err != nil {
		return nil, fmt.Errorf("invalid to addresses: %w", err)
	}
	if len(m.CC) > 0 {
		if err := msg.Cc(m.CC...); err != nil {
			return nil, fmt.Errorf("invalid cc addresses: %w", err)
		}
	}
	if len(m.BCC) > 0 {
		if err := msg.Bcc(m.BCC...); err != nil {
			return nil, fmt.Errorf("invalid bcc addresses: %w", err)
		}
	}
	if m.ReplyTo != "" {
		if err := msg.ReplyTo(m.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, m.Body)
	return msg, nil
}
