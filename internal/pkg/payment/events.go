package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"

	"github.com/gabrielluis21/intelliresume-backend/app/models"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventInvoicePaid       = "invoice.payment_succeeded"
	EventInvoiceFailed     = "invoice.payment_failed"
)

const metadataUserIDKey = "userId"

// DecodedEvent is the engine's view of a webhook event after payload
// decoding: which user (if directly known), which subscription to ask
// the provider about, and which plan the event maps to.
type DecodedEvent struct {
	EventID        string
	EventType      string
	UserID         string
	SubscriptionID string
	Plan           string

	// Skip marks events that carry a handled type but no actionable
	// outcome, e.g. a completed checkout that is not paid yet.
	Skip       bool
	SkipReason string

	// Unhandled marks event types outside the transition table. They are
	// acknowledged explicitly, never mistaken for an applied transition.
	Unhandled bool
}

// Webhook payloads are decoded into minimal local structs instead of the
// full API types. Expandable fields arrive as plain IDs on webhooks.
type checkoutSessionPayload struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	Subscription  string            `json:"subscription"`
	Metadata      map[string]string `json:"metadata"`
}

type invoicePayload struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription string            `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// decodeEvent maps a verified provider event onto a plan transition.
func decodeEvent(event stripe.Event) (*DecodedEvent, error) {
	decoded := &DecodedEvent{
		EventID:   event.ID,
		EventType: string(event.Type),
	}

	switch string(event.Type) {
	case EventCheckoutCompleted, EventCheckoutExpired:
		var session checkoutSessionPayload
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: decoding checkout session: %v", ErrMalformedEvent, err)
		}
		decoded.UserID = session.Metadata[metadataUserIDKey]
		decoded.SubscriptionID = session.Subscription

		if string(event.Type) == EventCheckoutCompleted {
			decoded.Plan = models.PlanPremium
			if session.PaymentStatus != "paid" {
				decoded.Skip = true
				decoded.SkipReason = "checkout session not paid: " + session.PaymentStatus
			}
		} else {
			decoded.Plan = models.PlanFree
		}
		return decoded, nil

	case EventInvoicePaid, EventInvoiceFailed:
		var invoice invoicePayload
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("%w: decoding invoice: %v", ErrMalformedEvent, err)
		}
		decoded.SubscriptionID = invoice.Subscription
		if invoice.Parent != nil && invoice.Parent.SubscriptionDetails != nil {
			details := invoice.Parent.SubscriptionDetails
			if details.Subscription != "" {
				decoded.SubscriptionID = details.Subscription
			}
			decoded.UserID = details.Metadata[metadataUserIDKey]
		}

		if string(event.Type) == EventInvoicePaid {
			decoded.Plan = models.PlanPremium
		} else {
			decoded.Plan = models.PlanFree
		}
		return decoded, nil
	}

	decoded.Unhandled = true
	return decoded, nil
}
