package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"emailforge/config"
	"emailforge/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Plan{},
		&models.CreditTransaction{},
		&models.EmailAccount{},
		&models.LeadList{},
		&models.Lead{},
		&models.Sequence{},
		&models.SequenceStep{},
		&models.Campaign{},
		&models.CampaignEmail{},
		&models.InboxMessage{},
		&models.Notification{},
		&models.Webhook{},
		&models.WebhookDelivery{},
	))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		PasswordHash: "x",
		IsActive:     true,
		EmailCredits: 10000,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// authAs replaces the JWT middleware so handlers see a fixed user
func authAs(user *models.User) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", user)
		c.Locals("userID", user.ID)
		return c.Next()
	}
}

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func init() {
	config.AppConfig.EncryptionKey = "controller-test-key"
}
