package controllers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/gabrielluis21/intelliresume-backend/app/models"
	"github.com/gabrielluis21/intelliresume-backend/app/repository"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/constants"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/database"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/env"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/payment"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/usercontext"
)

var (
	paymentEngine      *payment.Engine
	paymentProvisioner *payment.Provisioner
	paymentUsers       repository.UserAccountRepository
)

// InitializePaymentController wires the payment handlers with the
// billing engine and provisioner
func InitializePaymentController() {
	repo := payment.NewGormRepository(database.GetDB())
	billing := payment.NewStripeClientFromEnv()

	paymentEngine = payment.NewEngine(repo, billing, env.MustGet("STRIPE_WEBHOOK_SECRET"))
	paymentProvisioner = payment.NewProvisioner(billing, repo)
	paymentUsers = repository.GetGlobalFactory().GetUserAccountRepository()
}

type createPaymentIntentRequest struct {
	PriceID string `json:"priceId"`
}

// HandleCreatePaymentIntent provisions an incomplete subscription and
// returns the payment sheet secrets for the mobile client
func HandleCreatePaymentIntent(c *fiber.Ctx) error {
	var req createPaymentIntentRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_request",
		})
	}
	priceID := req.PriceID
	if priceID == "" {
		priceID = env.MustGet("STRIPE_PRICE_ID")
	}

	account, err := currentAccount(c)
	if err != nil {
		return accountError(c, err)
	}

	sheet, err := paymentProvisioner.CreateSubscriptionIntent(c.UserContext(), account.UID, account.Email, account.Name, priceID)
	if err != nil {
		log.Printf("billing: payment intent provisioning failed for %s: %v", account.UID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "payment_provisioning_failed",
		})
	}

	return c.JSON(fiber.Map{
		"paymentIntent":  sheet.PaymentIntentClientSecret,
		"ephemeralKey":   sheet.EphemeralKeySecret,
		"customer":       sheet.CustomerID,
		"subscriptionId": sheet.SubscriptionID,
	})
}

// HandleCreateCheckoutSession provisions a hosted checkout page
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req createPaymentIntentRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid_request",
		})
	}
	priceID := req.PriceID
	if priceID == "" {
		priceID = env.MustGet("STRIPE_PRICE_ID")
	}

	account, err := currentAccount(c)
	if err != nil {
		return accountError(c, err)
	}

	backend := strings.TrimRight(env.GetEnv("BACKEND_URL", ""), "/")
	checkoutURL, err := paymentProvisioner.CreateCheckoutSession(c.UserContext(),
		account.UID, account.Email, account.Name, priceID,
		backend+constants.PaymentSuccessRoute, backend+constants.PaymentCancelRoute)
	if err != nil {
		log.Printf("billing: checkout provisioning failed for %s: %v", account.UID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "payment_provisioning_failed",
		})
	}

	return c.JSON(fiber.Map{"url": checkoutURL})
}

// HandleStripeWebhook feeds provider deliveries into the reconciliation
// engine. Non-2xx responses make the provider redeliver, so only
// retryable failures return 500.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.BodyRaw()...)
	sigHeader := c.Get("Stripe-Signature")

	result, err := paymentEngine.HandleEvent(c.UserContext(), payload, sigHeader)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidSignature):
			log.Printf("billing: webhook rejected: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid_signature",
			})
		case errors.Is(err, payment.ErrMalformedEvent):
			log.Printf("billing: webhook rejected: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid_payload",
			})
		default:
			log.Printf("billing: webhook processing failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "processing_failed",
			})
		}
	}

	if result.Applied {
		log.Printf("billing: event %s applied plan %s to account %s", result.EventID, result.Plan, result.UserID)
	}
	return c.JSON(fiber.Map{"received": true})
}

// HandleSubscriptionCancel downgrades the calling account back to the
// free plan
func HandleSubscriptionCancel(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)

	if err := paymentEngine.Downgrade(c.UserContext(), uc.UserID); err != nil {
		if errors.Is(err, payment.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "account_not_found",
			})
		}
		log.Printf("billing: downgrade failed for %s: %v", uc.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "downgrade_failed",
		})
	}

	return c.JSON(fiber.Map{"plan": models.PlanFree})
}

// HandlePaymentSuccess is the checkout return URL
func HandlePaymentSuccess(c *fiber.Ctx) error {
	frontend := strings.TrimRight(env.GetEnv("FRONTEND_URL", ""), "/")
	return c.Redirect(frontend+"/home?payment=success", fiber.StatusSeeOther)
}

// HandlePaymentCancel is the checkout abort URL
func HandlePaymentCancel(c *fiber.Ctx) error {
	frontend := strings.TrimRight(env.GetEnv("FRONTEND_URL", ""), "/")
	return c.Redirect(frontend+"/home?payment=cancelled", fiber.StatusSeeOther)
}

func currentAccount(c *fiber.Ctx) (*models.UserAccount, error) {
	uc := usercontext.GetUserContext(c)
	return paymentUsers.GetByUID(uc.UserID)
}

func accountError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "account_not_found",
		})
	}
	log.Printf("billing: account lookup failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal_error",
	})
}
