package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Email is a rendered message ready for delivery.
type Email struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers rendered email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends HTML email with go-mail, using STARTTLS when the
// server offers it and PLAIN auth when a username is configured.
type SMTPSender struct {
	cfg  SMTPConfig
	send func(ctx context.Context, m *gomail.Msg) error
	now  func() time.Time
}

// NewSMTPSender creates a sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	s := &SMTPSender{cfg: cfg, now: time.Now}
	s.send = s.dialAndSend
	return s
}

func (s *SMTPSender) Send(ctx context.Context, e Email) error {
	if len(e.To) == 0 {
		return fmt.Errorf("mail: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := s.message(e)
	if err != nil {
		return err
	}
	if err := s.send(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// message builds the MIME message. Header text is RFC 2047 encoded by
// go-mail and addresses are parsed as RFC 5322 mailboxes.
func (s *SMTPSender) message(e Email) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("mail: invalid from address: %w", err)
	}
	if err := m.To(e.To...); err != nil {
		return nil, fmt.Errorf("mail: invalid recipient: %w", err)
	}
	m.Subject(sanitizeHeader(e.Subject))
	m.SetDateWithValue(s.now())
	m.SetMessageID()
	m.SetBodyString(gomail.TypeTextHTML, e.HTML)
	return m, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, m *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	c, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, m)
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// ConsoleSender logs email instead of sending it and keeps what it sent.
type ConsoleSender struct {
	logger *slog.Logger
	mu     sync.Mutex
	sent   []Email
}

// NewConsoleSender creates a sender that writes to logger.
func NewConsoleSender(logger *slog.Logger) *ConsoleSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleSender{logger: logger}
}

func (s *ConsoleSender) Send(ctx context.Context, e Email) error {
	s.mu.Lock()
	s.sent = append(s.sent, e)
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "email", "to", strings.Join(e.To, ", "), "subject", e.Subject, "bytes", len(e.HTML))
	return nil
}

// Sent returns a copy of every email sent so far.
func (s *ConsoleSender) Sent() []Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Email, len(s.sent))
	copy(out, s.sent)
	return out
}

// NewSender returns an SMTP sender for backend "smtp" and a console
// sender otherwise.
func NewSender(backend string, cfg SMTPConfig, logger *slog.Logger) Sender {
	if backend == "smtp" {
		return NewSMTPSender(cfg)
	}
	return NewConsoleSender(logger)
}
