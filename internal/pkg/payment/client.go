package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/env"
)

// SubscriptionIntent carries what a mobile client needs to confirm an
// incomplete subscription's first payment.
type SubscriptionIntent struct {
	SubscriptionID string
	ClientSecret   string
}

// SubscriptionResolver looks up subscription metadata at the provider.
// The reconciliation engine uses it to correlate invoice events that do
// not carry a user reference themselves.
type SubscriptionResolver interface {
	GetSubscriptionMetadata(ctx context.Context, subscriptionID string) (map[string]string, error)
}

// BillingClient is the outbound surface to the billing provider.
type BillingClient interface {
	SubscriptionResolver

	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID, userID string) (*SubscriptionIntent, error)
	CreateEphemeralKey(ctx context.Context, customerID string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, priceID, userID, successURL, cancelURL string) (string, error)
}

// callTimeout bounds every provider call so a hung upstream surfaces as
// a retryable failure instead of a stuck request.
const callTimeout = 15 * time.Second

// StripeClient implements BillingClient against the Stripe API.
type StripeClient struct {
	api *client.API
}

func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

func boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, callTimeout)
}

func NewStripeClientFromEnv() *StripeClient {
	return NewStripeClient(env.MustGet("STRIPE_SECRET_KEY"))
}

func (s *StripeClient) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	ctx, cancel := boundedContext(ctx)
	defer cancel()

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata(metadataUserIDKey, userID)
	params.SetIdempotencyKey(uuid.NewString())

	customer, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("creating customer: %w", err)
	}
	return customer.ID, nil
}

func (s *StripeClient) CreateSubscription(ctx context.Context, customerID, priceID, userID string) (*SubscriptionIntent, error) {
	ctx, cancel := boundedContext(ctx)
	defer cancel()

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataUserIDKey, userID)
	params.AddExpand("latest_invoice.confirmation_secret")
	params.SetIdempotencyKey(uuid.NewString())

	sub, err := s.api.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating subscription: %w", err)
	}

	intent := &SubscriptionIntent{SubscriptionID: sub.ID}
	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		intent.ClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}
	if intent.ClientSecret == "" {
		return nil, fmt.Errorf("subscription %s has no confirmation secret", sub.ID)
	}
	return intent, nil
}

func (s *StripeClient) CreateEphemeralKey(ctx context.Context, customerID string) (string, error) {
	ctx, cancel := boundedContext(ctx)
	defer cancel()

	params := &stripe.EphemeralKeyParams{
		Customer:      stripe.String(customerID),
		StripeVersion: stripe.String(stripe.APIVersion),
	}
	params.Context = ctx

	key, err := s.api.EphemeralKeys.New(params)
	if err != nil {
		return "", fmt.Errorf("creating ephemeral key: %w", err)
	}
	return key.Secret, nil
}

func (s *StripeClient) CreateCheckoutSession(ctx context.Context, customerID, priceID, userID, successURL, cancelURL string) (string, error) {
	ctx, cancel := boundedContext(ctx)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
			"boleto",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx
	params.AddMetadata(metadataUserIDKey, userID)
	params.SetIdempotencyKey(uuid.NewString())

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}
	return session.URL, nil
}

func (s *StripeClient) GetSubscriptionMetadata(ctx context.Context, subscriptionID string) (map[string]string, error) {
	ctx, cancel := boundedContext(ctx)
	defer cancel()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieving subscription %s: %v", ErrUpstreamUnavailable, subscriptionID, err)
	}
	return sub.Metadata, nil
}
