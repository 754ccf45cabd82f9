// AngelaMos | 2026
// mailer.go

package reset

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/carterperez-dev/arphoto/backend/internal/config"
)

type Mailer interface {
	SendResetCode(
		ctx context.Context,
		to, code string,
		expiresAt time.Time,
	) error
}

type SMTPMailer struct {
	cfg config.MailConfig
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendResetCode(
	ctx context.Context,
	to, code string,
	expiresAt time.Time,
) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	msg.Subject("Your password reset code")
	msg.SetBodyString(mail.TypeTextPlain, resetBody(code, expiresAt))

	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(10 * time.Second),
	}
	if m.cfg.Username != "" {
		opts = append(
			opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send reset code: %w", err)
	}

	return nil
}

func resetBody(code string, expiresAt time.Time) string {
	return fmt.Sprintf(
		"Your password reset code is %s.\n\n"+
			"It expires at %s (UTC). If you did not ask for a reset, "+
			"you can ignore this message.\n",
		code,
		expiresAt.UTC().Format("15:04"),
	)
}

// LogMailer writes codes to the log instead of sending them. Used when no
// SMTP host is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendResetCode(
	ctx context.Context,
	to, code string,
	expiresAt time.Time,
) error {
	m.logger.InfoContext(ctx, "password reset code",
		"email", to,
		"code", code,
		"expires_at", expiresAt,
	)
	return nil
}

// NewMailer picks SMTP delivery when a host is configured.
func NewMailer(cfg config.MailConfig, logger *slog.Logger) Mailer {
	if cfg.SMTPHost == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}
