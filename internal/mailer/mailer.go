// Package mailer relays contact-form messages over SMTP with go-mail.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

var ErrNotConfigured = errors.New("mailer: smtp host or sender not configured")

// ErrNotDelivered reports a message that was recorded but never handed to a
// relay.
var ErrNotDelivered = errors.New("mailer: message logged, not delivered")

const (
	ModeTLS      = "tls"      // implicit TLS, usually port 465
	ModeStartTLS = "starttls" // plain connection upgraded with STARTTLS, usually 587
	ModeNone     = "none"     // no encryption, local relays only
)

type Message struct {
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Mode     string
	Timeout  time.Duration
}

// SMTP opens one session per message.
type SMTP struct {
	cfg Config
	now func() time.Time
}

func NewSMTP(cfg Config) *SMTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeTLS
	}
	if cfg.Port == 0 {
		cfg.Port = 465
		if cfg.Mode == ModeStartTLS {
			cfg.Port = 587
		}
	}
	return &SMTP{cfg: cfg, now: time.Now}
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if s.cfg.Host == "" || s.cfg.From == "" {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return errors.New("mailer: no recipients")
	}

	m, err := s.compose(msg)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("mailer: client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("mailer: dial %s: %w", s.cfg.Host, err)
	}
	if err := client.Send(m); err != nil {
		client.Close()
		return fmt.Errorf("mailer: send: %w", err)
	}
	return client.Close()
}

func (s *SMTP) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
		mail.WithTLSConfig(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}),
	}
	switch s.cfg.Mode {
	case ModeTLS:
		opts = append(opts, mail.WithSSL())
	case ModeStartTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// compose builds a plain-text message. The subject comes from form input, so
// line breaks in it are flattened before it reaches the header.
func (s *SMTP) compose(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("mailer: from %q: %w", s.cfg.From, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("mailer: recipients: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("mailer: reply-to %q: %w", msg.ReplyTo, err)
		}
	}
	m.Subject(headerValue(msg.Subject))
	m.SetDateWithValue(s.now())
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

func headerValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// LogSender writes messages to the log instead of sending them. It stands in
// when no SMTP relay is configured and always returns ErrNotDelivered.
type LogSender struct {
	Log logrus.FieldLogger
}

func (l LogSender) Send(_ context.Context, msg Message) error {
	l.Log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
		"bytes":   len(msg.Body),
	}).Warn("smtp not configured, message not delivered")
	return ErrNotDelivered
}

// ContactMessage addresses a contact-form submission to the sender's own
// address and, when set, the site inbox.
func ContactMessage(name, email, phone, body, inbox string) Message {
	to := []string{email}
	if inbox != "" && !strings.EqualFold(inbox, email) {
		to = append(to, inbox)
	}
	return Message{
		To:      to,
		ReplyTo: email,
		Subject: fmt.Sprintf("%s , %s", name, phone),
		Body:    body,
	}
}
