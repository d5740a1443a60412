package router

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/gabrielluis21/intelliresume-backend/app/controllers"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/constants"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/identity"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (a ApiRouter) InstallRouter(app *fiber.App) {
	controllers.InitializePaymentController()

	verifier, err := identity.NewVerifierFromEnv(context.Background())
	if err != nil {
		log.Fatalf("identity verifier setup failed: %v", err)
	}

	// Provider callbacks and checkout return URLs are unauthenticated.
	// No rate limit on the webhook, the provider retries aggressively.
	app.Post(constants.PaymentWebhookRoute, controllers.HandleStripeWebhook)
	app.Get(constants.PaymentSuccessRoute, controllers.HandlePaymentSuccess)
	app.Get(constants.PaymentCancelRoute, controllers.HandlePaymentCancel)

	authed := app.Group("", limiter.New(), middleware.BearerAuth(verifier))
	authed.Post(constants.PaymentIntentRoute, controllers.HandleCreatePaymentIntent)
	authed.Post(constants.CheckoutSessionRoute, controllers.HandleCreateCheckoutSession)
	authed.Post(constants.SubscriptionCancelRoute, controllers.HandleSubscriptionCancel)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
