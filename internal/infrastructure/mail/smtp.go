package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/url"
	"text/template"

	"github.com/dajohi/goemail"
	"github.com/rs/zerolog"

	"github.com/anonychat/anonychat-api/internal/core/domain"
	"github.com/anonychat/anonychat-api/internal/core/ports"
)

const defaultFromName = "AnonyChat"

// Config holds the SMTP settings. An empty Host disables delivery.
type Config struct {
	Host       string
	User       string
	Password   string
	From       string
	SkipVerify bool
}

type sender interface {
	Send(msg *goemail.Message) error
}

// Mailer sends verification code emails over SMTPS.
type Mailer struct {
	smtp        sender // nil when disabled
	mailName    string
	mailAddress string
	log         zerolog.Logger
}

var _ ports.Mailer = (*Mailer)(nil)

// New builds a Mailer from cfg. With no host configured the returned mailer
// only logs the codes it would have sent.
func New(cfg Config, log zerolog.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		log.Warn().Msg("SMTP host not configured, verification emails are disabled")
		return &Mailer{log: log}, nil
	}

	from := cfg.From
	if from == "" {
		from = fmt.Sprintf("%s <%s>", defaultFromName, cfg.User)
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse mail from: %w", err)
	}
	if addr.Name == "" {
		addr.Name = defaultFromName
	}

	u := url.URL{Scheme: "smtps", Host: cfg.Host}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}

	client, err := goemail.NewSMTP(u.String(), &tls.Config{InsecureSkipVerify: cfg.SkipVerify}) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &Mailer{smtp: client, mailName: addr.Name, mailAddress: addr.Address, log: log}, nil
}

// Enabled reports whether emails are actually delivered.
func (m *Mailer) Enabled() bool { return m.smtp != nil }

// SendCode renders and sends the email carrying a verification code.
func (m *Mailer) SendCode(ctx context.Context, c ports.CodeMail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.smtp == nil {
		m.log.Debug().
			Str("to", c.To).
			Str("purpose", string(c.Purpose)).
			Str("code", c.Code).
			Msg("email disabled, skipping send")
		return nil
	}

	subject, body, err := render(c)
	if err != nil {
		return err
	}

	msg := goemail.NewMessage(m.mailAddress, subject, body)
	msg.SetName(m.mailName)
	msg.AddTo(c.To)

	if err := m.smtp.Send(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.log.Info().Str("to", c.To).Str("purpose", string(c.Purpose)).Msg("code email sent")
	return nil
}

const codeEmailText = `Hello {{.Username}},

{{.Intro}}

    {{.Code}}

This code will expire in {{.Minutes}} minutes.

If you didn't request this, you can safely ignore this email.

Thanks,
The AnonyChat Team
`

var codeEmailTmpl = template.Must(template.New("code_email").Parse(codeEmailText))

func render(c ports.CodeMail) (subject, body string, err error) {
	subject = "AnonyChat - Verify Your Email Address"
	intro := "Your verification code is:"
	if c.Purpose == domain.PurposePasswordReset {
		subject = "AnonyChat - Password Reset Request"
		intro = "You requested to reset your password. Your verification code is:"
	}

	minutes := int(c.TTL.Minutes())
	if minutes <= 0 {
		minutes = 10
	}

	data := struct {
		Username string
		Intro    string
		Code     string
		Minutes  int
	}{c.Username, intro, c.Code, minutes}

	var b bytes.Buffer
	if err := codeEmailTmpl.Execute(&b, data); err != nil {
		return "", "", fmt.Errorf("render code email: %w", err)
	}
	return subject, b.String(), nil
}
