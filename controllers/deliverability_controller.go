package controller

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type DeliverabilityController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDeliverabilityController(db *gorm.DB, logger *log.Logger) *DeliverabilityController {
	return &DeliverabilityController{
		DB:     db,
		Logger: logger,
	}
}

type SpamTestRequest struct {
	FromEmail string `json:"from_email" validate:"required,email"`
	Subject   string `json:"subject" validate:"required,max=200"`
	Body      string `json:"body" validate:"required"`
}

// RunSpamTest scores a draft email for spam risk before sending
func (dc *DeliverabilityController) RunSpamTest(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req SpamTestRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	report, err := utils.RunSpamTest(req.FromEmail, req.Subject, req.Body)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	utils.LogEvent(dc.Logger, "spam_test_completed", log.Fields{
		"user_id": user.ID,
		"domain":  utils.ExtractDomain(req.FromEmail),
		"score":   report.SpamScore,
		"verdict": report.Verdict,
	})

	return c.JSON(utils.SuccessResponse(report))
}

// CheckDomainReputation reports the standing of a sending domain
func (dc *DeliverabilityController) CheckDomainReputation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	domain := strings.ToLower(strings.TrimSpace(c.Query("domain")))
	if domain == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Domain is required", nil)
	}
	if strings.ContainsAny(domain, "@/ ") || !strings.Contains(domain, ".") {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid domain", nil)
	}

	report, err := utils.CheckDomainReputation(domain)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	utils.LogEvent(dc.Logger, "domain_reputation_checked", log.Fields{
		"user_id": user.ID,
		"domain":  domain,
		"score":   report.Score,
		"grade":   report.Grade,
	})

	return c.JSON(utils.SuccessResponse(report))
}
