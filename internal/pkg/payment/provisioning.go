package payment

import (
	"context"
	"log"

	"golang.org/x/sync/singleflight"
)

// PaymentSheet bundles the secrets a mobile client needs to drive the
// native payment flow for a new subscription.
type PaymentSheet struct {
	PaymentIntentClientSecret string
	EphemeralKeySecret        string
	CustomerID                string
	SubscriptionID            string
}

// Provisioner creates billing-provider resources on behalf of an
// authenticated user.
type Provisioner struct {
	billing BillingClient
	repo    Repository
	group   singleflight.Group
}

func NewProvisioner(billing BillingClient, repo Repository) *Provisioner {
	return &Provisioner{billing: billing, repo: repo}
}

// EnsureCustomer returns the user's billing customer id, creating one at
// the provider on first use. Concurrent requests for the same user are
// collapsed so only one customer gets created.
func (p *Provisioner) EnsureCustomer(ctx context.Context, userID, email, name string) (string, error) {
	existing, err := p.repo.GetBillingCustomerID(ctx, userID)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	customerID, err, _ := p.group.Do(userID, func() (interface{}, error) {
		// Re-check under the flight, another request may have won.
		current, err := p.repo.GetBillingCustomerID(ctx, userID)
		if err != nil {
			return "", err
		}
		if current != "" {
			return current, nil
		}

		created, err := p.billing.CreateCustomer(ctx, userID, email, name)
		if err != nil {
			return "", err
		}
		log.Printf("billing: created customer %s for account %s", created, userID)
		return p.repo.SetBillingCustomerIDIfEmpty(ctx, userID, created)
	})
	if err != nil {
		return "", err
	}
	return customerID.(string), nil
}

// CreateSubscriptionIntent provisions an incomplete subscription and
// returns the payment sheet for the client to confirm it.
func (p *Provisioner) CreateSubscriptionIntent(ctx context.Context, userID, email, name, priceID string) (*PaymentSheet, error) {
	customerID, err := p.EnsureCustomer(ctx, userID, email, name)
	if err != nil {
		return nil, err
	}

	intent, err := p.billing.CreateSubscription(ctx, customerID, priceID, userID)
	if err != nil {
		return nil, err
	}

	ephemeralKey, err := p.billing.CreateEphemeralKey(ctx, customerID)
	if err != nil {
		return nil, err
	}

	return &PaymentSheet{
		PaymentIntentClientSecret: intent.ClientSecret,
		EphemeralKeySecret:        ephemeralKey,
		CustomerID:                customerID,
		SubscriptionID:            intent.SubscriptionID,
	}, nil
}

// CreateCheckoutSession provisions a hosted checkout page and returns
// its URL.
func (p *Provisioner) CreateCheckoutSession(ctx context.Context, userID, email, name, priceID, successURL, cancelURL string) (string, error) {
	customerID, err := p.EnsureCustomer(ctx, userID, email, name)
	if err != nil {
		return "", err
	}
	return p.billing.CreateCheckoutSession(ctx, customerID, priceID, userID, successURL, cancelURL)
}
