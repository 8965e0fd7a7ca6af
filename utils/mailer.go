package utils

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"emailforge/models"
)

// OutgoingEmail holds everything needed to send one message through
// a connected email account.
type OutgoingEmail struct {
	To        string
	Subject   string
	Body      string
	MessageID string
	InReplyTo string
}

// NewAccountDialer builds a gomail dialer from an account's SMTP
// configuration. The stored password must already be decrypted.
func NewAccountDialer(account *models.EmailAccount, smtpPassword string) *gomail.Dialer {
	dialer := gomail.NewDialer(
		account.SMTPHost,
		account.SMTPPort,
		account.SMTPUsername,
		smtpPassword,
	)
	switch strings.ToUpper(account.Encryption) {
	case "SSL", "TLS":
		dialer.SSL = true
	case "STARTTLS":
		dialer.TLSConfig = &tls.Config{ServerName: account.SMTPHost}
	default:
		dialer.SSL = false
	}
	return dialer
}

// SendAccountEmail sends a single message through the given account.
// The send runs in its own goroutine so a hung SMTP server cannot
// stall the caller past the timeout.
func SendAccountEmail(account *models.EmailAccount, email OutgoingEmail, timeout time.Duration) error {
	smtpPassword, err := Decrypt(account.SMTPPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt SMTP password: %v", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", account.FromName, account.FromEmail))
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	if email.MessageID != "" {
		m.SetHeader("Message-ID", fmt.Sprintf("<%s>", email.MessageID))
	}
	if email.InReplyTo != "" {
		m.SetHeader("In-Reply-To", fmt.Sprintf("<%s>", email.InReplyTo))
	}
	m.SetBody("text/html", email.Body)

	dialer := NewAccountDialer(account, smtpPassword)

	done := make(chan error, 1)
	go func() {
		done <- dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send failed: %v", err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("send timed out after %s", timeout)
	}
}

// RenderTemplate substitutes lead placeholders into a subject or body.
// Supported placeholders: {{name}}, {{first_name}}, {{email}},
// {{company}}, {{title}}.
func RenderTemplate(text string, lead *models.Lead) string {
	firstName := lead.Name
	if idx := strings.IndexByte(firstName, ' '); idx > 0 {
		firstName = firstName[:idx]
	}

	replacer := strings.NewReplacer(
		"{{name}}", lead.Name,
		"{{first_name}}", firstName,
		"{{email}}", lead.Email,
		"{{company}}", lead.Company,
		"{{title}}", lead.Title,
	)
	return replacer.Replace(text)
}
