package controller

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

func newAccountTestApp(db *gorm.DB, user *models.User) *fiber.App {
	ec := NewAccountController(db, testLogger())

	app := fiber.New()
	api := app.Group("/api/v1", authAs(user))
	api.Post("/accounts", ec.CreateAccount)
	api.Get("/accounts", ec.GetAccounts)
	api.Put("/accounts/:id", ec.UpdateAccount)
	api.Delete("/accounts/:id", ec.DeleteAccount)
	return app
}

func createAccountPayload() fiber.Map {
	return fiber.Map{
		"name":          "Main outreach",
		"from_email":    "Sales@Acme.com",
		"from_name":     "Acme Sales",
		"smtp_host":     "smtp.acme.com",
		"smtp_port":     587,
		"smtp_username": "sales@acme.com",
		"smtp_password": "smtp-secret",
		"encryption":    "STARTTLS",
		"imap_host":     "imap.acme.com",
		"imap_username": "sales@acme.com",
		"imap_password": "imap-secret",
	}
}

func TestCreateAccountEncryptsCredentials(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	app := newAccountTestApp(db, user)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/accounts", createAccountPayload()))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var account models.EmailAccount
	require.NoError(t, db.First(&account).Error)
	assert.Equal(t, "sales@acme.com", account.FromEmail)
	assert.Equal(t, "pending", account.Status)
	assert.NotEqual(t, "smtp-secret", account.SMTPPassword)

	decrypted, err := utils.Decrypt(account.SMTPPassword)
	require.NoError(t, err)
	assert.Equal(t, "smtp-secret", decrypted)

	// Passwords never leave the API
	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Empty(t, data["smtp_password"])
	assert.Empty(t, data["imap_password"])
}

func TestCreateAccountValidatesEncryption(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	app := newAccountTestApp(db, user)

	payload := createAccountPayload()
	payload["encryption"] = "ROT13"

	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/accounts", payload))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUpdateAccountCredentialsResetVerification(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db, "owner@example.com")
	app := newAccountTestApp(db, user)

	resp, err := app.Test(jsonRequest(t, "POST", "/api/v1/accounts", createAccountPayload()))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	require.NoError(t, db.Model(&models.EmailAccount{}).Where("id = ?", 1).
		Updates(map[string]interface{}{"status": "active", "smtp_verified": true}).Error)

	resp, err = app.Test(jsonRequest(t, "PUT", "/api/v1/accounts/1", fiber.Map{
		"smtp_password": "new-secret",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var account models.EmailAccount
	require.NoError(t, db.First(&account).Error)
	assert.Equal(t, "pending", account.Status)
	assert.False(t, account.SMTPVerified)

	decrypted, err := utils.Decrypt(account.SMTPPassword)
	require.NoError(t, err)
	assert.Equal(t, "new-secret", decrypted)
}

func TestDeleteAccountOwnership(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	ownerApp := newAccountTestApp(db, owner)
	resp, err := ownerApp.Test(jsonRequest(t, "POST", "/api/v1/accounts", createAccountPayload()))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	otherApp := newAccountTestApp(db, other)
	resp, err = otherApp.Test(jsonRequest(t, "DELETE", "/api/v1/accounts/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var count int64
	db.Model(&models.EmailAccount{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
