package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTPNotifier sends links by e-mail over implicit TLS (SMTPS).
type SMTPNotifier struct {
	host     string
	port     int
	from     string
	password string
}

var _ Notifier = (*SMTPNotifier)(nil)

// NewSMTP constructs an SMTPNotifier authenticating as from.
func NewSMTP(host string, port int, from, password string) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, password: password}
}

// SendLink delivers the download link by mail. The message never contains
// the passcode: the owner relays it out-of-band.
func (n *SMTPNotifier) SendLink(ctx context.Context, recipient string, userID int64, link, period string) error {
	subject := fmt.Sprintf("Conversation log export for %d (%s)", userID, period)
	body := strings.Join([]string{
		"You can download the file from the following link.",
		link,
		"",
		"The passcode will be provided by the client.",
		"The link does not expire, but the number of downloads is limited.",
	}, "\r\n")

	msg := strings.Join([]string{
		"From: " + n.from,
		"To: " + recipient,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := net.JoinHostPort(n.host, fmt.Sprint(n.port))
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: n.host})
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	c, err := smtp.NewClient(conn, n.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Auth(smtp.PlainAuth("", n.from, n.password, n.host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(n.from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := c.Rcpt(recipient); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp finish: %w", err)
	}
	return c.Quit()
}
