package controller

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"emailforge/models"
	"emailforge/utils"
)

type BillingController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewBillingController(db *gorm.DB, logger *log.Logger) *BillingController {
	return &BillingController{
		DB:     db,
		Logger: logger,
	}
}

// GetPlans lists the purchasable credit plans
func (bc *BillingController) GetPlans(c *fiber.Ctx) error {
	var plans []models.Plan
	if err := bc.DB.Order("price ASC").Find(&plans).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch plans", err)
	}
	return c.JSON(utils.SuccessResponse(plans))
}

type CreateIntentRequest struct {
	PlanID uint `json:"plan_id" validate:"required"`
}

// CreateIntent starts a Stripe payment for a credit plan
func (bc *BillingController) CreateIntent(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var plan models.Plan
	if err := bc.DB.First(&plan, req.PlanID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Plan not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch plan", err)
	}
	if plan.Price <= 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Plan cannot be purchased", nil)
	}

	customerID, err := utils.GetOrCreateStripeCustomer(user)
	if err != nil {
		utils.LogError(bc.Logger, err, "Failed to create Stripe customer", log.Fields{"user_id": user.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create payment", nil)
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID != customerID {
		bc.DB.Model(user).Update("stripe_customer_id", customerID)
	}

	intent, err := utils.CreatePlanPaymentIntent(customerID, &plan)
	if err != nil {
		utils.LogError(bc.Logger, err, "Failed to create payment intent", log.Fields{
			"user_id": user.ID,
			"plan_id": plan.ID,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create payment", nil)
	}

	transaction := models.CreditTransaction{
		UserID:                user.ID,
		PlanID:                &plan.ID,
		EmailCredits:          plan.EmailCredits,
		Amount:                plan.Price,
		Currency:              "usd",
		PaymentStatus:         "pending",
		Description:           "Purchase of " + plan.Name + " plan",
		StripePaymentIntentID: intent.ID,
	}
	if err := bc.DB.Create(&transaction).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record transaction", err)
	}

	utils.LogEvent(bc.Logger, "payment_intent_created", log.Fields{
		"user_id": user.ID,
		"plan_id": plan.ID,
		"amount":  plan.Price,
	})

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"client_secret":     intent.ClientSecret,
		"payment_intent_id": intent.ID,
		"transaction_id":    transaction.ID,
	}))
}

// GetTransactions lists the user's credit transactions
func (bc *BillingController) GetTransactions(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	var transactions []models.CreditTransaction
	if err := bc.DB.Where("user_id = ?", user.ID).Preload("Plan").
		Order("id DESC").Offset(offset).Limit(limit).
		Find(&transactions).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch transactions", err)
	}

	var total int64
	bc.DB.Model(&models.CreditTransaction{}).Where("user_id = ?", user.ID).Count(&total)

	return c.JSON(utils.PaginatedResponse{
		Data:  transactions,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// HandleStripeWebhook processes payment events from Stripe
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructStripeEvent(c)
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			return utils.ErrorResponse(c, fe.Code, fe.Message, nil)
		}
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook", err)
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event payload", err)
		}
		if err := bc.completePurchase(intent.ID); err != nil {
			utils.LogError(bc.Logger, err, "Failed to complete purchase", log.Fields{
				"payment_intent_id": intent.ID,
			})
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process payment", nil)
		}
	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid event payload", err)
		}
		bc.DB.Model(&models.CreditTransaction{}).
			Where("stripe_payment_intent_id = ? AND payment_status = ?", intent.ID, "pending").
			Update("payment_status", "failed")
	}

	return c.JSON(fiber.Map{"received": true})
}

// completePurchase credits the user once a payment settles. Safe to
// call twice for the same intent.
func (bc *BillingController) completePurchase(paymentIntentID string) error {
	var transaction models.CreditTransaction
	if err := bc.DB.Where("stripe_payment_intent_id = ?", paymentIntentID).
		First(&transaction).Error; err != nil {
		return err
	}
	if transaction.PaymentStatus == "completed" {
		return nil
	}

	tx := bc.DB.Begin()
	if err := tx.Model(&transaction).Update("payment_status", "completed").Error; err != nil {
		tx.Rollback()
		return err
	}

	updates := map[string]interface{}{
		"email_credits": gorm.Expr("email_credits + ?", transaction.EmailCredits),
	}
	if transaction.PlanID != nil {
		var plan models.Plan
		if err := tx.First(&plan, *transaction.PlanID).Error; err == nil {
			updates["plan_id"] = plan.ID
			updates["plan_name"] = plan.Name
		}
	}
	if err := tx.Model(&models.User{}).Where("id = ?", transaction.UserID).
		Updates(updates).Error; err != nil {
		tx.Rollback()
		return err
	}

	notification := models.Notification{
		UserID:  transaction.UserID,
		Type:    "credit_purchase",
		Title:   "Credits added",
		Message: transaction.Description + " completed, " + strconv.Itoa(transaction.EmailCredits) + " credits added",
	}
	if err := tx.Create(&notification).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	utils.LogEvent(bc.Logger, "credit_purchase_completed", log.Fields{
		"user_id": transaction.UserID,
		"credits": transaction.EmailCredits,
	})
	return nil
}
