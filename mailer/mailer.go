package mailer

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"
	signup "github.com/goliatone/go-signup"
	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Validate checks the relay settings are usable
func (c SMTPConfig) Validate() error {
	missing := []string{}
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.Port == 0 {
		missing = append(missing, "port")
	}
	if c.From == "" {
		missing = append(missing, "from")
	}
	if len(missing) > 0 {
		return errors.New("smtp configuration incomplete", errors.CategoryValidation).
			WithMetadata(map[string]any{"missing": strings.Join(missing, ",")})
	}
	return nil
}

// SMTP sends messages through an SMTP relay.
type SMTP struct {
	from   string
	dialer *gomail.Dialer
}

// NewSMTP creates an SMTP mailer
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SMTP{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// Send implements signup.Mailer. gomail has no context support so ctx
// is only checked before dialing.
func (m *SMTP) Send(ctx context.Context, msg signup.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.dialer.DialAndSend(m.build(msg)); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to send email").
			WithMetadata(map[string]any{"to": msg.To, "subject": msg.Subject})
	}
	return nil
}

func (m *SMTP) build(msg signup.Message) *gomail.Message {
	out := gomail.NewMessage()
	out.SetHeader("From", m.from)
	out.SetHeader("To", msg.To)
	out.SetHeader("Subject", msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		out.SetBody("text/plain", msg.Text)
		out.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		out.SetBody("text/html", msg.HTML)
	default:
		out.SetBody("text/plain", msg.Text)
	}

	return out
}

// Log records messages instead of delivering them. Only the recipient and
// subject reach the logger since bodies carry verification links.
type Log struct {
	logger signup.Logger

	mu   sync.Mutex
	sent []signup.Message
}

// NewLog creates a Log mailer
func NewLog(logger signup.Logger) *Log {
	if logger == nil {
		logger = signup.DefaultLogger()
	}
	return &Log{logger: logger}
}

// Send implements signup.Mailer
func (m *Log) Send(_ context.Context, msg signup.Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.logger.Info("email to=%s subject=%q", msg.To, msg.Subject)
	return nil
}

// Sent returns a copy of the messages sent so far
func (m *Log) Sent() []signup.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]signup.Message(nil), m.sent...)
}
