package notify

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/formwatch/formwatch/internal/config"
)

// smtpSendFunc matches smtp.SendMail, swappable in tests.
type smtpSendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email delivers alerts over SMTP as multipart plain+HTML mail.
type Email struct {
	cfg  config.EmailConfig
	send smtpSendFunc
}

// NewEmail builds the email channel from configuration.
func NewEmail(cfg config.EmailConfig) *Email {
	return &Email{cfg: cfg, send: smtp.SendMail}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Enabled() bool { return e.cfg.Enabled }

func (e *Email) Send(ctx context.Context, msg Message) error {
	if e.cfg.SMTPHost == "" || e.cfg.FromAddress == "" || len(e.cfg.ToAddresses) == 0 {
		return fmt.Errorf("%w: smtp host, sender and recipients are required", ErrConfigMissing)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, e.cfg.SMTPPort)
	if err := e.send(addr, auth, e.cfg.FromAddress, e.cfg.ToAddresses, e.compose(msg)); err != nil {
		return fmt.Errorf("sending mail via %s: %w", addr, err)
	}
	return nil
}

func (e *Email) compose(msg Message) []byte {
	subject := fmt.Sprintf("[%s] Form Change: %s - %s",
		strings.ToUpper(string(msg.Severity)), msg.AgencyName, msg.ResourceName)

	const boundary = "=_formwatch_alt"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.FromAddress)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.cfg.ToAddresses, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(e.plainBody(msg))
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(e.htmlBody(msg))
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

func (e *Email) plainBody(msg Message) string {
	var b strings.Builder
	b.WriteString("A monitored government form has changed.\r\n\r\n")
	fmt.Fprintf(&b, "Form:        %s\r\n", msg.ResourceName)
	fmt.Fprintf(&b, "Agency:      %s\r\n", msg.AgencyName)
	fmt.Fprintf(&b, "Severity:    %s\r\n", msg.Severity)
	fmt.Fprintf(&b, "Detected:    %s\r\n", msg.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Description: %s\r\n", msg.Description)
	fmt.Fprintf(&b, "URL:         %s\r\n", msg.URL)
	if msg.DashboardURL != "" {
		fmt.Fprintf(&b, "Dashboard:   %s\r\n", msg.DashboardURL)
	}
	return b.String()
}

func (e *Email) htmlBody(msg Message) string {
	var b strings.Builder
	b.WriteString("<html><body style=\"font-family: sans-serif;\">")
	fmt.Fprintf(&b, "<h2 style=\"color: %s;\">Form Change Detected</h2>", severityColor(msg.Severity))
	b.WriteString("<table cellpadding=\"4\">")
	fmt.Fprintf(&b, "<tr><td><b>Form</b></td><td>%s</td></tr>", msg.ResourceName)
	fmt.Fprintf(&b, "<tr><td><b>Agency</b></td><td>%s</td></tr>", msg.AgencyName)
	fmt.Fprintf(&b, "<tr><td><b>Severity</b></td><td>%s</td></tr>", strings.ToUpper(string(msg.Severity)))
	fmt.Fprintf(&b, "<tr><td><b>Detected</b></td><td>%s</td></tr>", msg.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "<tr><td><b>Description</b></td><td>%s</td></tr>", msg.Description)
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p><a href=\"%s\">View the form</a>", msg.URL)
	if msg.DashboardURL != "" {
		fmt.Fprintf(&b, " &middot; <a href=\"%s\">Open the dashboard</a>", msg.DashboardURL)
	}
	b.WriteString("</p></body></html>")
	return b.String()
}
