package payment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/gabrielluis21/intelliresume-backend/app/models"
)

// Result describes what the engine did with one webhook delivery.
type Result struct {
	EventID   string
	EventType string
	UserID    string
	Plan      string

	// Applied is true when a plan write happened. Acknowledged but
	// skipped deliveries (duplicates, unhandled types, unresolved
	// correlation) leave it false.
	Applied   bool
	Duplicate bool
}

// Engine reconciles provider webhook events into the user plan state.
// It is the only writer of plan fields.
type Engine struct {
	repo          Repository
	resolver      SubscriptionResolver
	webhookSecret string
}

func NewEngine(repo Repository, resolver SubscriptionResolver, webhookSecret string) *Engine {
	return &Engine{
		repo:          repo,
		resolver:      resolver,
		webhookSecret: webhookSecret,
	}
}

// HandleEvent verifies, deduplicates and applies a single webhook
// delivery. Nothing is persisted before the signature check passes.
func (e *Engine) HandleEvent(ctx context.Context, payload []byte, sigHeader string) (*Result, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, e.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, classifyConstructError(err)
	}

	decoded, err := decodeEvent(event)
	if err != nil {
		return nil, err
	}
	if decoded.Unhandled {
		// Acknowledge types outside the transition table without
		// touching state.
		log.Printf("billing: ignoring event %s of type %s", decoded.EventID, decoded.EventType)
		return &Result{EventID: decoded.EventID, EventType: decoded.EventType}, nil
	}

	result := &Result{
		EventID:   decoded.EventID,
		EventType: decoded.EventType,
		Plan:      decoded.Plan,
	}

	record, created, err := e.repo.RecordWebhookEvent(ctx, models.BillingProviderStripe, decoded.EventID, decoded.EventType, payload)
	if err != nil {
		return nil, err
	}
	if !created && record.ProcessedAt != nil {
		log.Printf("billing: duplicate event %s, skipping", decoded.EventID)
		result.Duplicate = true
		return result, nil
	}

	if decoded.Skip {
		log.Printf("billing: skipping event %s: %s", decoded.EventID, decoded.SkipReason)
		return result, e.repo.MarkWebhookProcessed(ctx, record.ID, errors.New(decoded.SkipReason))
	}

	userID, err := e.correlate(ctx, decoded)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		log.Printf("billing: event %s has no user reference, acknowledging", decoded.EventID)
		return result, e.repo.MarkWebhookProcessed(ctx, record.ID, errors.New("no user reference"))
	}
	result.UserID = userID

	if err := e.repo.SetUserPlan(ctx, userID, decoded.Plan); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Redelivery cannot fix an unknown account, acknowledge.
			log.Printf("billing: event %s references unknown account %s", decoded.EventID, userID)
			return result, e.repo.MarkWebhookProcessed(ctx, record.ID, err)
		}
		return nil, err
	}

	log.Printf("billing: event %s set account %s to plan %s", decoded.EventID, userID, decoded.Plan)
	result.Applied = true
	return result, e.repo.MarkWebhookProcessed(ctx, record.ID, nil)
}

// Downgrade drops an account back to the free plan. Used by the
// user-initiated cancel flow so plan writes stay in one place.
func (e *Engine) Downgrade(ctx context.Context, userID string) error {
	if err := e.repo.SetUserPlan(ctx, userID, models.PlanFree); err != nil {
		return err
	}
	log.Printf("billing: account %s downgraded to %s", userID, models.PlanFree)
	return nil
}

// correlate resolves the target user, falling back to subscription
// metadata at the provider when the event itself carries no reference.
func (e *Engine) correlate(ctx context.Context, decoded *DecodedEvent) (string, error) {
	if decoded.UserID != "" {
		return decoded.UserID, nil
	}
	if decoded.SubscriptionID == "" {
		return "", nil
	}

	metadata, err := e.resolver.GetSubscriptionMetadata(ctx, decoded.SubscriptionID)
	if err != nil {
		return "", err
	}
	return metadata[metadataUserIDKey], nil
}

func classifyConstructError(err error) error {
	switch {
	case errors.Is(err, webhook.ErrNotSigned),
		errors.Is(err, webhook.ErrNoValidSignature),
		errors.Is(err, webhook.ErrTooOld),
		errors.Is(err, webhook.ErrInvalidHeader):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
}
