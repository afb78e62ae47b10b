package users

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
	"gopkg.in/gomail.v2"
)

// MailKind selects the notification template
type MailKind = string

const (
	// MailKindNewAccount welcomes a freshly created user
	MailKindNewAccount MailKind = "new-account"
	// MailKindPasswordReset carries the reset token link
	MailKindPasswordReset MailKind = "password-reset"
)

// SendMailRequest is the payload handed to a MailSink
type SendMailRequest struct {
	Kind  MailKind
	To    string
	Name  string
	Token string
}

// MailSink delivers account notifications. Sends happen off the request
// path, a failing sink never fails the operation that triggered it.
type MailSink interface {
	Send(ctx context.Context, req SendMailRequest) error
}

// NoopMailSink drops every message, used when email is disabled and in tests
type NoopMailSink struct{}

func (NoopMailSink) Send(ctx context.Context, req SendMailRequest) error {
	return nil
}

// SMTPMailSink delivers notifications over SMTP
type SMTPMailSink struct {
	dialer  *gomail.Dialer
	from    string
	appName string
	baseURL string
	logger  Logger
}

// SMTPOptions configures the SMTP sink
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AppName  string
	// BaseURL is the public address reset links point at
	BaseURL string
	Logger  Logger
}

// NewSMTPMailSink creates a sink from the given options
func NewSMTPMailSink(opts SMTPOptions) *SMTPMailSink {
	logger := opts.Logger
	if logger == nil {
		logger = defLogger{}
	}
	return &SMTPMailSink{
		dialer:  gomail.NewDialer(opts.Host, opts.Port, opts.Username, opts.Password),
		from:    opts.From,
		appName: opts.AppName,
		baseURL: opts.BaseURL,
		logger:  logger,
	}
}

// Send composes and delivers the message for the request's kind
func (s *SMTPMailSink) Send(ctx context.Context, req SendMailRequest) error {
	subject, body, err := s.compose(req)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", req.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to send email").
			WithMetadata(map[string]any{"kind": req.Kind})
	}

	s.logger.Info("sent %s email to %s", req.Kind, req.To)
	return nil
}

func (s *SMTPMailSink) compose(req SendMailRequest) (subject, body string, err error) {
	switch req.Kind {
	case MailKindNewAccount:
		subject = fmt.Sprintf("%s - Welcome %s", s.appName, req.Name)
		body = fmt.Sprintf(
			"Hi %s,\n\nYour %s account is ready. You can sign in at %s/login\n",
			req.Name, s.appName, s.baseURL,
		)
	case MailKindPasswordReset:
		subject = fmt.Sprintf("%s - Password recovery", s.appName)
		body = fmt.Sprintf(
			"Hi %s,\n\nWe received a request to reset your password. Follow the link below to choose a new one:\n\n%s/reset-password?token=%s\n\nIf you did not request this you can ignore this message.\n",
			req.Name, s.baseURL, req.Token,
		)
	default:
		return "", "", errors.New("unknown mail kind", errors.CategoryBadInput).
			WithMetadata(map[string]any{"kind": req.Kind})
	}
	return subject, body, nil
}

var (
	_ MailSink = (*NoopMailSink)(nil)
	_ MailSink = (*SMTPMailSink)(nil)
)
