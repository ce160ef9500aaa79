package notifications

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"suture/internal/config"
	"suture/internal/services"
)

// ResultMessage carries everything needed to mail an analysis result.
type ResultMessage struct {
	SubmissionID string
	To           string
	Name         string
	Program      string
	Iteration    int
	Score        float64
}

// Mailer sends a single result email. Implementations do not retry; the
// Notifier owns the backoff policy.
type Mailer interface {
	SendResult(ctx context.Context, msg ResultMessage) error
}

// NewMailer returns an SMTP mailer, or a no-op when email is disabled.
func NewMailer(cfg *config.Config) Mailer {
	if !cfg.Notifications.EmailEnabled {
		return noopMailer{}
	}
	return &smtpMailer{
		addr:     net.JoinHostPort(cfg.Notifications.SMTPHost, strconv.Itoa(cfg.Notifications.SMTPPort)),
		host:     cfg.Notifications.SMTPHost,
		from:     cfg.Notifications.SMTPFrom,
		username: cfg.Notifications.SMTPUsername,
		password: cfg.Notifications.SMTPPassword,
	}
}

type smtpMailer struct {
	addr     string
	host     string
	from     string
	username string
	password string

	// sendMail overrides delivery in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, body []byte) error
}

func (m *smtpMailer) SendResult(ctx context.Context, msg ResultMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := buildResultEmail(m.from, msg)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	send := m.sendMail
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(m.addr, auth, m.from, []string{msg.To}, body); err != nil {
		return services.Wrap(services.ErrNotify, "notifications", "send_result",
			fmt.Sprintf("mail %s", msg.To), err)
	}
	return nil
}

func buildResultEmail(from string, msg ResultMessage) []byte {
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		name = "trainee"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	b.WriteString("Subject: Your Surgical Skill Analysis Results\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Hello %s,\r\n\r\n", name)
	b.WriteString("Your surgical skill video has been analyzed. Here are your results:\r\n\r\n")
	fmt.Fprintf(&b, "Score: %.1f/10\r\n", msg.Score)
	if msg.Iteration > 0 {
		fmt.Fprintf(&b, "Iteration: %d\r\n", msg.Iteration)
	}
	if program := strings.TrimSpace(msg.Program); program != "" {
		fmt.Fprintf(&b, "Program: %s\r\n", program)
	}
	b.WriteString("\r\nGreat job! Keep up the good work in your surgical training.\r\n\r\n")
	b.WriteString("Thank you for using the Surgical Skill Analysis System.\r\n")
	return []byte(b.String())
}

type noopMailer struct{}

func (noopMailer) SendResult(context.Context, ResultMessage) error { return nil }
