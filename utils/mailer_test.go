package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"emailforge/models"
)

func TestRenderTemplate(t *testing.T) {
	lead := &models.Lead{
		Name:    "Jane Smith",
		Email:   "jane@acme.com",
		Company: "Acme",
		Title:   "VP Sales",
	}

	out := RenderTemplate("Hi {{first_name}}, is {{company}} hiring for {{title}}?", lead)
	assert.Equal(t, "Hi Jane, is Acme hiring for VP Sales?", out)
}

func TestRenderTemplateSingleWordName(t *testing.T) {
	lead := &models.Lead{Name: "Cher", Email: "cher@example.com"}

	out := RenderTemplate("{{name}} / {{first_name}}", lead)
	assert.Equal(t, "Cher / Cher", out)
}

func TestRenderTemplateMissingFields(t *testing.T) {
	lead := &models.Lead{Name: "Bob Jones", Email: "bob@example.com"}

	out := RenderTemplate("Hello {{first_name}} at {{company}}", lead)
	assert.Equal(t, "Hello Bob at ", out)
}

func TestNewAccountDialerEncryptionModes(t *testing.T) {
	account := &models.EmailAccount{
		SMTPHost:     "smtp.example.com",
		SMTPPort:     465,
		SMTPUsername: "user",
		Encryption:   "SSL",
	}

	dialer := NewAccountDialer(account, "secret")
	assert.True(t, dialer.SSL)

	account.Encryption = "STARTTLS"
	dialer = NewAccountDialer(account, "secret")
	assert.False(t, dialer.SSL)
	assert.Equal(t, "smtp.example.com", dialer.TLSConfig.ServerName)

	account.Encryption = "NONE"
	dialer = NewAccountDialer(account, "secret")
	assert.False(t, dialer.SSL)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 33.3, Round1(33.333333))
	assert.Equal(t, 66.7, Round1(66.66666))
	assert.Equal(t, 0.0, Round1(0))
}
