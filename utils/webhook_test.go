package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emailforge/models"
)

func TestGenerateWebhookSecret(t *testing.T) {
	first, err := GenerateWebhookSecret()
	require.NoError(t, err)
	second, err := GenerateWebhookSecret()
	require.NoError(t, err)

	assert.Len(t, first, 64)
	assert.NotEqual(t, first, second)
}

func TestSignPayload(t *testing.T) {
	payload := []byte(`{"event":"opened"}`)

	sig := SignPayload("secret-a", payload)
	assert.Equal(t, sig, SignPayload("secret-a", payload))
	assert.NotEqual(t, sig, SignPayload("secret-b", payload))
	assert.NotEqual(t, sig, SignPayload("secret-a", []byte(`{"event":"sent"}`)))
}

func TestSubscribesTo(t *testing.T) {
	webhook := &models.Webhook{Events: []string{"opened", "replied"}}

	assert.True(t, subscribesTo(webhook, "opened"))
	assert.False(t, subscribesTo(webhook, "bounced"))
}
