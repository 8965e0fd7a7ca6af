package utils

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"

	"emailforge/config"
	"emailforge/models"
)

// InitStripe sets the API key for all subsequent Stripe calls.
func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

// GetOrCreateStripeCustomer returns the user's Stripe customer ID,
// creating the customer on first use.
func GetOrCreateStripeCustomer(user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	var name string
	if user.Name != nil {
		name = *user.Name
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(name),
		Metadata: map[string]string{
			"user_id": strconv.Itoa(int(user.ID)),
		},
	}

	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe customer: %v", err)
	}
	return c.ID, nil
}

// CreatePlanPaymentIntent creates a payment intent for a plan purchase.
func CreatePlanPaymentIntent(customerID string, plan *models.Plan) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(plan.Price)),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		Customer: stripe.String(customerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String("Purchase of " + plan.Name + " plan"),
	}
	return paymentintent.New(params)
}

// ConstructStripeEvent verifies and parses a Stripe webhook request.
func ConstructStripeEvent(c *fiber.Ctx) (stripe.Event, error) {
	payload := c.Body()
	if len(payload) == 0 {
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Empty request body")
	}

	signature := c.Get("Stripe-Signature")
	if signature == "" {
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Missing Stripe-Signature header")
	}

	event, err := webhook.ConstructEventWithTolerance(
		payload,
		signature,
		config.AppConfig.StripeWebhookSecret,
		5*time.Minute,
	)
	if err != nil {
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Invalid webhook signature")
	}
	return event, nil
}
