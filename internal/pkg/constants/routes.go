package constants

// Static route constants
const (
	HealthRoute = "/"

	AuthBeginRoute    = "/auth/:provider"
	AuthCallbackRoute = "/auth/:provider/callback"

	PaymentIntentRoute   = "/create-payment-intent"
	CheckoutSessionRoute = "/create-checkout-session"
	PaymentWebhookRoute  = "/webhook"
	PaymentSuccessRoute  = "/success"
	PaymentCancelRoute   = "/cancel"

	SubscriptionCancelRoute = "/payment/cancel"
)
