package controller

import (
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type AccountController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAccountController(db *gorm.DB, logger *log.Logger) *AccountController {
	return &AccountController{
		DB:     db,
		Logger: logger,
	}
}

type CreateAccountRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	FromEmail      string `json:"from_email" validate:"required,email"`
	FromName       string `json:"from_name" validate:"omitempty,max=100"`
	SMTPHost       string `json:"smtp_host" validate:"required"`
	SMTPPort       int    `json:"smtp_port" validate:"required,min=1,max=65535"`
	SMTPUsername   string `json:"smtp_username" validate:"required"`
	SMTPPassword   string `json:"smtp_password" validate:"required"`
	Encryption     string `json:"encryption" validate:"required,oneof=SSL TLS STARTTLS NONE"`
	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port" validate:"omitempty,min=1,max=65535"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"imap_password"`
	IMAPEncryption string `json:"imap_encryption" validate:"omitempty,oneof=SSL TLS STARTTLS NONE"`
	IMAPMailbox    string `json:"imap_mailbox"`
	DailyLimit     int    `json:"daily_limit" validate:"omitempty,min=1,max=10000"`
}

type UpdateAccountRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=100"`
	FromName     *string `json:"from_name" validate:"omitempty,max=100"`
	SMTPHost     *string `json:"smtp_host"`
	SMTPPort     *int    `json:"smtp_port" validate:"omitempty,min=1,max=65535"`
	SMTPUsername *string `json:"smtp_username"`
	SMTPPassword *string `json:"smtp_password"`
	Encryption   *string `json:"encryption" validate:"omitempty,oneof=SSL TLS STARTTLS NONE"`
	IMAPHost     *string `json:"imap_host"`
	IMAPPort     *int    `json:"imap_port" validate:"omitempty,min=1,max=65535"`
	IMAPUsername *string `json:"imap_username"`
	IMAPPassword *string `json:"imap_password"`
	IMAPMailbox  *string `json:"imap_mailbox"`
	DailyLimit   *int    `json:"daily_limit" validate:"omitempty,min=1,max=10000"`
}

type TestResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CreateAccount registers a new SMTP/IMAP mailbox. Credentials are
// encrypted before they touch the database.
func (ec *AccountController) CreateAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	encryptedSMTPPassword, err := utils.Encrypt(req.SMTPPassword)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt SMTP password", err)
	}
	encryptedIMAPPassword, err := utils.Encrypt(req.IMAPPassword)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt IMAP password", err)
	}

	account := models.EmailAccount{
		UserID:       user.ID,
		Name:         req.Name,
		FromEmail:    strings.ToLower(req.FromEmail),
		FromName:     req.FromName,
		SMTPHost:     req.SMTPHost,
		SMTPPort:     req.SMTPPort,
		SMTPUsername: req.SMTPUsername,
		SMTPPassword: encryptedSMTPPassword,
		Encryption:   req.Encryption,
		IMAPHost:     req.IMAPHost,
		IMAPUsername: req.IMAPUsername,
		IMAPPassword: encryptedIMAPPassword,
		Status:       "pending",
	}
	if req.IMAPPort > 0 {
		account.IMAPPort = req.IMAPPort
	}
	if req.IMAPEncryption != "" {
		account.IMAPEncryption = req.IMAPEncryption
	}
	if req.IMAPMailbox != "" {
		account.IMAPMailbox = req.IMAPMailbox
	}
	if req.DailyLimit > 0 {
		account.DailyLimit = req.DailyLimit
	}

	if err := ec.DB.Create(&account).Error; err != nil {
		utils.LogError(ec.Logger, err, "Failed to create email account", log.Fields{"user_id": user.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create email account", err)
	}

	account.Sanitize()
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(account))
}

// GetAccounts returns all email accounts of the user
func (ec *AccountController) GetAccounts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var accounts []models.EmailAccount
	if err := ec.DB.Where("user_id = ?", user.ID).Find(&accounts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch email accounts", err)
	}

	for i := range accounts {
		accounts[i].Sanitize()
	}
	return c.JSON(utils.SuccessResponse(accounts))
}

// GetAccount returns a single email account by ID
func (ec *AccountController) GetAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	accountID := c.Params("id")

	var account models.EmailAccount
	if err := ec.DB.Where("id = ? AND user_id = ?", accountID, user.ID).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Email account not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch email account", err)
	}

	account.Sanitize()
	return c.JSON(utils.SuccessResponse(account))
}

// UpdateAccount updates account settings. A changed password is
// re-encrypted and the account drops back to pending until retested.
func (ec *AccountController) UpdateAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	accountID := c.Params("id")

	var req UpdateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var account models.EmailAccount
	if err := ec.DB.Where("id = ? AND user_id = ?", accountID, user.ID).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Email account not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch email account", err)
	}

	credentialsChanged := false

	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.FromName != nil {
		account.FromName = *req.FromName
	}
	if req.SMTPHost != nil {
		account.SMTPHost = *req.SMTPHost
		credentialsChanged = true
	}
	if req.SMTPPort != nil {
		account.SMTPPort = *req.SMTPPort
		credentialsChanged = true
	}
	if req.SMTPUsername != nil {
		account.SMTPUsername = *req.SMTPUsername
		credentialsChanged = true
	}
	if req.SMTPPassword != nil {
		encrypted, err := utils.Encrypt(*req.SMTPPassword)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt SMTP password", err)
		}
		account.SMTPPassword = encrypted
		credentialsChanged = true
	}
	if req.Encryption != nil {
		account.Encryption = *req.Encryption
		credentialsChanged = true
	}
	if req.IMAPHost != nil {
		account.IMAPHost = *req.IMAPHost
	}
	if req.IMAPPort != nil {
		account.IMAPPort = *req.IMAPPort
	}
	if req.IMAPUsername != nil {
		account.IMAPUsername = *req.IMAPUsername
	}
	if req.IMAPPassword != nil {
		encrypted, err := utils.Encrypt(*req.IMAPPassword)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt IMAP password", err)
		}
		account.IMAPPassword = encrypted
	}
	if req.IMAPMailbox != nil {
		account.IMAPMailbox = *req.IMAPMailbox
	}
	if req.DailyLimit != nil {
		account.DailyLimit = *req.DailyLimit
	}

	if credentialsChanged {
		account.Status = "pending"
		account.SMTPVerified = false
	}

	if err := ec.DB.Save(&account).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update email account", err)
	}

	account.Sanitize()
	return c.JSON(utils.SuccessResponse(account))
}

// DeleteAccount removes an email account
func (ec *AccountController) DeleteAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	accountID := c.Params("id")

	result := ec.DB.Where("id = ? AND user_id = ?", accountID, user.ID).Delete(&models.EmailAccount{})
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete email account", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Email account not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Email account deleted successfully",
	}))
}

// TestAccount runs live SMTP and IMAP connection tests against the
// configured servers and flips the account status accordingly.
func (ec *AccountController) TestAccount(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	accountID := c.Params("id")

	var account models.EmailAccount
	if err := ec.DB.Where("id = ? AND user_id = ?", accountID, user.ID).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Email account not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch email account", err)
	}

	if _, err := mail.ParseAddress(account.FromEmail); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid from email format", err)
	}

	if hasMX, err := utils.ValidateMXRecords(account.FromEmail); err != nil || !hasMX {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Domain MX records not found or invalid", err)
	}

	smtpPassword, err := utils.Decrypt(account.SMTPPassword)
	if err != nil {
		utils.LogError(ec.Logger, err, "Failed to decrypt SMTP password", log.Fields{"account_id": account.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to decrypt SMTP password", err)
	}

	ec.DB.Model(&account).Update("status", "testing")

	var results struct {
		SMTP TestResult `json:"smtp"`
		IMAP TestResult `json:"imap"`
	}

	results.SMTP = ec.testSMTPConnection(&account, smtpPassword)
	if account.IMAPHost != "" {
		results.IMAP = ec.testIMAPConnection(&account)
	} else {
		results.IMAP = TestResult{Success: true}
	}

	updates := map[string]interface{}{
		"smtp_verified":  results.SMTP.Success,
		"imap_verified":  account.IMAPHost != "" && results.IMAP.Success,
		"last_tested_at": time.Now(),
	}
	if results.SMTP.Success && results.IMAP.Success {
		updates["status"] = "active"
		updates["last_error"] = nil
	} else {
		firstError := results.SMTP.Error
		if firstError == "" {
			firstError = results.IMAP.Error
		}
		updates["status"] = "error"
		updates["last_error"] = firstError
	}

	if err := ec.DB.Model(&account).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update account status", err)
	}

	utils.LogEvent(ec.Logger, "account_test_completed", log.Fields{
		"account_id":   account.ID,
		"smtp_success": results.SMTP.Success,
		"imap_success": results.IMAP.Success,
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Account test completed",
		"results": results,
	}))
}

// testSMTPConnection dials the SMTP server with the configured
// encryption mode and authenticates.
func (ec *AccountController) testSMTPConnection(account *models.EmailAccount, password string) TestResult {
	result := TestResult{Success: false}
	smtpAddr := fmt.Sprintf("%s:%d", account.SMTPHost, account.SMTPPort)

	var auth smtp.Auth
	if account.SMTPUsername != "" && password != "" {
		auth = smtp.PlainAuth("", account.SMTPUsername, password, account.SMTPHost)
	}

	switch strings.ToUpper(account.Encryption) {
	case "SSL", "TLS":
		conn, err := tls.Dial("tcp", smtpAddr, &tls.Config{ServerName: account.SMTPHost})
		if err != nil {
			result.Error = fmt.Sprintf("Failed to establish TLS connection: %v", err)
			return result
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, account.SMTPHost)
		if err != nil {
			result.Error = fmt.Sprintf("Failed to create SMTP client: %v", err)
			return result
		}
		defer client.Close()

		if auth != nil {
			if err := client.Auth(auth); err != nil {
				result.Error = fmt.Sprintf("SMTP authentication failed: %v", err)
				return result
			}
		}
		result.Success = true

	case "STARTTLS":
		client, err := smtp.Dial(smtpAddr)
		if err != nil {
			result.Error = fmt.Sprintf("Failed to connect to SMTP server: %v", err)
			return result
		}
		defer client.Close()

		if err := client.StartTLS(&tls.Config{ServerName: account.SMTPHost}); err != nil {
			result.Error = fmt.Sprintf("Failed to start TLS: %v", err)
			return result
		}
		if auth != nil {
			if err := client.Auth(auth); err != nil {
				result.Error = fmt.Sprintf("SMTP authentication failed: %v", err)
				return result
			}
		}
		result.Success = true

	default:
		client, err := smtp.Dial(smtpAddr)
		if err != nil {
			result.Error = fmt.Sprintf("Failed to connect to SMTP server: %v", err)
			return result
		}
		defer client.Close()

		if auth != nil {
			if err := client.Auth(auth); err != nil {
				result.Error = fmt.Sprintf("SMTP authentication failed: %v", err)
				return result
			}
		}
		result.Success = true
	}

	return result
}

// testIMAPConnection logs into the IMAP server and selects the
// configured mailbox.
func (ec *AccountController) testIMAPConnection(account *models.EmailAccount) TestResult {
	result := TestResult{Success: false}

	imapPassword, err := utils.Decrypt(account.IMAPPassword)
	if err != nil {
		result.Error = fmt.Sprintf("Failed to decrypt IMAP password: %v", err)
		return result
	}

	imapAddr := fmt.Sprintf("%s:%d", account.IMAPHost, account.IMAPPort)
	var imapClient *client.Client

	switch strings.ToUpper(account.IMAPEncryption) {
	case "SSL", "TLS":
		imapClient, err = client.DialTLS(imapAddr, &tls.Config{ServerName: account.IMAPHost})
	case "STARTTLS":
		imapClient, err = client.Dial(imapAddr)
		if err == nil {
			err = imapClient.StartTLS(&tls.Config{ServerName: account.IMAPHost})
		}
	default:
		imapClient, err = client.Dial(imapAddr)
	}
	if err != nil {
		result.Error = fmt.Sprintf("Failed to connect to IMAP server: %v", err)
		return result
	}
	defer imapClient.Logout()

	imapClient.Timeout = 10 * time.Second

	if err := imapClient.Login(account.IMAPUsername, imapPassword); err != nil {
		result.Error = fmt.Sprintf("IMAP authentication failed: %v", err)
		return result
	}

	if account.IMAPMailbox != "" {
		if _, err := imapClient.Select(account.IMAPMailbox, true); err != nil {
			result.Error = fmt.Sprintf("Failed to select mailbox: %v", err)
			return result
		}
	}

	result.Success = true
	return result
}
