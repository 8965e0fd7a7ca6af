package controller

import (
	"crypto/tls"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type InboxController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewInboxController(db *gorm.DB, logger *log.Logger) *InboxController {
	return &InboxController{
		DB:     db,
		Logger: logger,
	}
}

// GetMessages returns inbox messages across all of the user's accounts
func (ic *InboxController) GetMessages(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := ic.DB.Where("user_id = ?", user.ID)
	if accountID := c.Query("account_id"); accountID != "" {
		query = query.Where("email_account_id = ?", utils.ParseUint(accountID))
	}
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}
	if sentiment := c.Query("sentiment"); sentiment != "" {
		query = query.Where("sentiment = ?", sentiment)
	}

	var messages []models.InboxMessage
	if err := query.Order("date DESC").Offset(offset).Limit(limit).Find(&messages).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch messages", err)
	}

	var total int64
	query.Model(&models.InboxMessage{}).Count(&total)

	return c.JSON(utils.PaginatedResponse{
		Data:  messages,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetMessage returns a single inbox message
func (ic *InboxController) GetMessage(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	messageID := c.Params("id")

	var message models.InboxMessage
	if err := ic.DB.Where("id = ? AND user_id = ?", messageID, user.ID).First(&message).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Message not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch message", err)
	}

	return c.JSON(utils.SuccessResponse(message))
}

// MarkRead marks a single message as read
func (ic *InboxController) MarkRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	messageID := c.Params("id")

	result := ic.DB.Model(&models.InboxMessage{}).
		Where("id = ? AND user_id = ?", messageID, user.ID).
		Update("is_read", true)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark message read", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Message not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Message marked as read",
	}))
}

// MarkAllRead marks every unread message as read with one UPDATE
func (ic *InboxController) MarkAllRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	result := ic.DB.Model(&models.InboxMessage{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Update("is_read", true)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark messages read", result.Error)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "All messages marked as read",
		"updated": result.RowsAffected,
	}))
}

// SearchMessages searches sender, subject and body
func (ic *InboxController) SearchMessages(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Search query is required", nil)
	}

	pattern := "%" + strings.ToLower(q) + "%"
	var messages []models.InboxMessage
	if err := ic.DB.Where("user_id = ?", user.ID).
		Where("LOWER(from_email) LIKE ? OR LOWER(subject) LIKE ? OR LOWER(body) LIKE ?",
			pattern, pattern, pattern).
		Order("date DESC").Limit(100).Find(&messages).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to search messages", err)
	}

	return c.JSON(utils.SuccessResponse(messages))
}

// FetchMessages pulls new mail over IMAP for every active account of
// the user that has IMAP configured.
func (ic *InboxController) FetchMessages(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var accounts []models.EmailAccount
	if err := ic.DB.Where("user_id = ? AND imap_host != ''", user.ID).Find(&accounts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch email accounts", err)
	}
	if len(accounts) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No accounts with IMAP configured", nil)
	}

	fetched := 0
	var errors []string
	for i := range accounts {
		n, err := FetchAccountMessages(ic.DB, ic.Logger, &accounts[i])
		if err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", accounts[i].FromEmail, err))
			continue
		}
		fetched += n
	}

	response := fiber.Map{
		"message": "Fetch completed",
		"fetched": fetched,
	}
	if len(errors) > 0 {
		response["errors"] = errors
	}
	return c.JSON(utils.SuccessResponse(response))
}

// FetchAccountMessages pulls unseen messages from one account's IMAP
// mailbox, stores them with a sentiment tag and folds replies back into
// campaign state. Returns the number of new messages stored.
func FetchAccountMessages(db *gorm.DB, logger *log.Logger, account *models.EmailAccount) (int, error) {
	password, err := utils.Decrypt(account.IMAPPassword)
	if err != nil {
		return 0, fmt.Errorf("failed to decrypt IMAP password: %v", err)
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
		return 0, fmt.Errorf("failed to connect to IMAP server: %v", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(account.IMAPUsername, password); err != nil {
		return 0, fmt.Errorf("failed to login to IMAP server: %v", err)
	}

	mailbox := account.IMAPMailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := imapClient.Select(mailbox, false); err != nil {
		return 0, fmt.Errorf("failed to select mailbox: %v", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{"\\Seen"}
	ids, err := imapClient.Search(criteria)
	if err != nil {
		return 0, fmt.Errorf("failed to search messages: %v", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Fetch(seqset,
			[]imap.FetchItem{imap.FetchEnvelope, imap.FetchItem("BODY.PEEK[]")}, messages)
	}()

	stored := 0
	for msg := range messages {
		if err := storeIMAPMessage(db, logger, account, msg); err != nil {
			logger.WithFields(log.Fields{"account_id": account.ID}).
				Warnf("Failed to process message %d: %v", msg.SeqNum, err)
			continue
		}
		stored++
	}

	if err := <-done; err != nil {
		return stored, fmt.Errorf("error during fetch: %v", err)
	}
	return stored, nil
}

func storeIMAPMessage(db *gorm.DB, logger *log.Logger, account *models.EmailAccount, msg *imap.Message) error {
	if msg.Envelope == nil {
		return fmt.Errorf("message has no envelope")
	}

	// Skip messages we already have
	var existing models.InboxMessage
	err := db.Where("email_account_id = ? AND message_id = ?", account.ID, msg.Envelope.MessageId).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	var bodyText, bodyHTML string
	if literal := msg.GetBody(&imap.BodySectionName{}); literal != nil {
		mr, err := mail.CreateReader(literal)
		if err != nil {
			return fmt.Errorf("failed to create message reader: %v", err)
		}

		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			} else if err != nil {
				return fmt.Errorf("failed to read next part: %v", err)
			}

			if h, ok := p.Header.(*mail.InlineHeader); ok {
				contentType, _, _ := h.ContentType()
				b, err := io.ReadAll(p.Body)
				if err != nil {
					return fmt.Errorf("failed to read body: %v", err)
				}
				if strings.Contains(contentType, "text/html") {
					bodyHTML = string(b)
				} else if strings.Contains(contentType, "text/plain") {
					bodyText = string(b)
				}
			}
		}
	}

	body := bodyText
	if body == "" {
		body = bodyHTML
	}

	message := models.InboxMessage{
		UserID:         account.UserID,
		EmailAccountID: account.ID,
		MessageID:      msg.Envelope.MessageId,
		FromEmail:      formatAddresses(msg.Envelope.From),
		ToEmail:        formatAddresses(msg.Envelope.To),
		Subject:        msg.Envelope.Subject,
		Body:           body,
		Date:           msg.Envelope.Date,
		Sentiment:      utils.ClassifySentiment(msg.Envelope.Subject + " " + body),
		InReplyTo:      strings.Trim(msg.Envelope.InReplyTo, "<>"),
	}

	if err := db.Create(&message).Error; err != nil {
		return fmt.Errorf("failed to save message: %v", err)
	}

	if message.InReplyTo != "" {
		matchReplyToCampaign(db, logger, &message)
	}
	return nil
}

// matchReplyToCampaign links an inbound reply to the campaign email it
// answers and stops the remaining follow-ups for that lead.
func matchReplyToCampaign(db *gorm.DB, logger *log.Logger, message *models.InboxMessage) {
	var email models.CampaignEmail
	if err := db.Where("message_id = ?", message.InReplyTo).First(&email).Error; err != nil {
		return
	}
	if email.RepliedAt != nil {
		return
	}

	now := time.Now()
	db.Model(&email).Updates(map[string]interface{}{
		"replied_at": now,
		"status":     "replied",
	})
	db.Model(&models.Campaign{}).Where("id = ?", email.CampaignID).
		Update("reply_count", gorm.Expr("reply_count + ?", 1))
	db.Where("campaign_id = ? AND lead_id = ? AND status = ?",
		email.CampaignID, email.LeadID, "pending").Delete(&models.CampaignEmail{})

	var campaign models.Campaign
	if err := db.First(&campaign, email.CampaignID).Error; err != nil {
		return
	}

	notification := models.Notification{
		UserID:     campaign.UserID,
		Type:       "reply",
		Title:      "New reply",
		Message:    "Reply from " + message.FromEmail + " in campaign \"" + campaign.Name + "\"",
		CampaignID: &campaign.ID,
	}
	if err := db.Create(&notification).Error; err != nil {
		logger.Warnf("Failed to create reply notification: %v", err)
	}

	utils.DispatchEvent(db, logger, campaign.UserID, utils.WebhookEvent{
		Event:      "replied",
		CampaignID: campaign.ID,
		LeadID:     email.LeadID,
		Data: map[string]interface{}{
			"message_id": message.InReplyTo,
			"from":       message.FromEmail,
			"sentiment":  message.Sentiment,
		},
	})
}

func formatAddresses(addrs []*imap.Address) string {
	var result []string
	for _, addr := range addrs {
		result = append(result, fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName))
	}
	return strings.Join(result, ", ")
}
