package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielluis21/intelliresume-backend/app/models"
)

const testWebhookSecret = "whsec_test_secret"

type fakeRepo struct {
	mu          sync.Mutex
	plans       map[string]string
	customerIDs map[string]string
	events      map[string]*models.BillingWebhookEvent
	nextID      uint

	planWrites    int
	failPlanWrite error
	missingUsers  map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		plans:        map[string]string{},
		customerIDs:  map[string]string{},
		events:       map[string]*models.BillingWebhookEvent{},
		missingUsers: map[string]bool{},
	}
}

func (f *fakeRepo) SetUserPlan(_ context.Context, userID, plan string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPlanWrite != nil {
		return f.failPlanWrite
	}
	if f.missingUsers[userID] {
		return ErrAccountNotFound
	}
	f.plans[userID] = plan
	f.planWrites++
	return nil
}

func (f *fakeRepo) GetBillingCustomerID(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missingUsers[userID] {
		return "", ErrAccountNotFound
	}
	return f.customerIDs[userID], nil
}

func (f *fakeRepo) SetBillingCustomerIDIfEmpty(_ context.Context, userID, customerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.customerIDs[userID] == "" {
		f.customerIDs[userID] = customerID
	}
	return f.customerIDs[userID], nil
}

func (f *fakeRepo) RecordWebhookEvent(_ context.Context, provider, eventID, eventType string, payload []byte) (*models.BillingWebhookEvent, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := provider + ":" + eventID
	if existing, ok := f.events[key]; ok {
		return existing, false, nil
	}
	f.nextID++
	record := &models.BillingWebhookEvent{
		ID:              f.nextID,
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(payload),
	}
	f.events[key] = record
	return record, true, nil
}

func (f *fakeRepo) MarkWebhookProcessed(_ context.Context, recordID uint, procErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.events {
		if record.ID == recordID {
			now := time.Now()
			record.ProcessedAt = &now
			if procErr != nil {
				record.ProcessingError = procErr.Error()
			}
			return nil
		}
	}
	return fmt.Errorf("%w: no record %d", ErrStoreWrite, recordID)
}

type fakeResolver struct {
	metadata map[string]map[string]string
	err      error
	calls    int
}

func (f *fakeResolver) GetSubscriptionMetadata(_ context.Context, subscriptionID string) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.metadata[subscriptionID], nil
}

// signPayload builds a Stripe-Signature header the way the provider
// does: HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(t *testing.T, id, eventType string, object map[string]interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":   id,
		"type": eventType,
		"data": map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	return payload
}

func TestHandleEventInvalidSignature(t *testing.T) {
	repo := newFakeRepo()
	engine := NewEngine(repo, &fakeResolver{}, testWebhookSecret)

	payload := eventPayload(t, "evt_1", EventCheckoutCompleted, map[string]interface{}{
		"id":             "cs_1",
		"payment_status": "paid",
		"metadata":       map[string]string{"userId": "user-1"},
	})
	sig := signPayload(t, payload, "whsec_wrong_secret")

	_, err := engine.HandleEvent(context.Background(), payload, sig)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, repo.events, "rejected delivery must not be recorded")
	assert.Empty(t, repo.plans, "rejected delivery must not change plans")
}

func TestHandleEventMalformedPayload(t *testing.T) {
	engine := NewEngine(newFakeRepo(), &fakeResolver{}, testWebhookSecret)

	payload := []byte("this is not json")
	sig := signPayload(t, payload, testWebhookSecret)

	_, err := engine.HandleEvent(context.Background(), payload, sig)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.False(t, IsRetryable(err))
}

func TestHandleEventCheckoutCompletedUpgrades(t *testing.T) {
	repo := newFakeRepo()
	engine := NewEngine(repo, &fakeResolver{}, testWebhookSecret)

	payload := eventPayload(t, "evt_2", EventCheckoutCompleted, map[string]interface{}{
		"id":             "cs_2",
		"payment_status": "paid",
		"metadata":       map[string]string{"userId": "user-1"},
	})

	result, err := engine.HandleEvent(context.Background(), payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, "user-1", result.UserID)
	assert.Equal(t, models.PlanPremium, repo.plans["user-1"])

	record := repo.events["stripe:evt_2"]
	require.NotNil(t, record)
	assert.NotNil(t, record.ProcessedAt)
	assert.Empty(t, record.ProcessingError)
}

func TestHandleEventCheckoutCompletedUnpaidSkips(t *testing.T) {
	repo := newFakeRepo()
	engine := NewEngine(repo, &fakeResolver{}, testWebhookSecret)

	payload := eventPayload(t, "evt_3", EventCheckoutCompleted, map[string]interface{}{
		"id":             "cs_3",
		"payment_status": "unpaid",
		"metadata":       map[string]string{"userId": "user-1"},
	})

	result, err := engine.HandleEvent(context.Background(), payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Empty(t, repo.plans)
}

func TestHandleEventCheckoutExpiredDowngrades(t *testing.T) {
	repo := newFakeRepo()
	repo.plans["user-1"] = models.PlanPremium
	engine := NewEngine(repo, &fakeResolver{}, testWebhookSecret)

	payload := eventPayload(t, "evt_4", EventCheckoutExpired, map[string]interface{}{
		"id":       "cs_4",
		"metadata": map[string]string{"userId": "user-1"},
	})

	result, err := engine.HandleEvent(context.Background(), payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.PlanFree, repo.plans["user-1"])
}

func TestHandleEventInvoicePaidResolvesViaSubscription(t *testing.T) {
	repo := newFakeRepo()
	resolver := &fakeResolver{metadata: map[string]map[string]string{
		"sub_1": {"userId": "user-2"},
	}}
	engine := NewEngine(repo, resolver, testWebhookSecret)

	payload := eventPayload(t, "evt_5", EventInvoicePaid, map[string]interface{}{
		"id":           "in_1",
		"subscription": "sub_1",
	})

	result, err := engine.HandleEvent(context.Background(), payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, "user-2", result.UserID)
	assert.Equal(t, models.PlanPremium, repo.plans["user-2"])
	assert.Equal(t, 1, resolver.calls)
}

func TestHandleEventInvoicePaidUsesParentMetadata(t *testing.T) {
	repo := newFakeRepo()
	resolver := &fakeResolver{}
	engine := NewEngine(repo, resolver, testWebhookSecret)

	payload := eventPayload(t, "evt_6", EventInvoicePaid, map[string]interface{}{
		"id": "in_2",
		"parent": map[string]interface{}{
			"subscription_details": map[string]interface{}{
				"subscription": "sub_2",
				"metadata":     map[string]string{"userId": "user-3"},
			},
		},
	})

	result, err := engine.HandleEvent(context.Background(), payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.PlanPremium, repo.plans["user-3"])
	assert.Zero(t, resolver.calls, "direct metadata should skip the provider lookup")
}

func TestHandleEventInvoiceFailedDowngrades(t *testing.T) {
	repo := newFakeRepo()
	repo.plans["user-2"] = models.PlanPremium
	resolver := &fakeResolver{metadata: map[string]map[string]string{
		"sub_1": {"userId": "user-2"},
	}}
	engine := NewEngine(repo, resolver, testWebhookSecret)

	payload := eventPayload(t, "evt_7", EventInvoiceFailed, map[string]interface{}{
		"id":           "in_3",
		"subscription": "sub_1",
	})

	result, err := engine.HandleEvent(context.Background(), payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.PlanFree, repo.plans["user-2"])
}

func TestHandleEventDuplicateDelivery(t *testing.T) {
	repo := newFakeRepo()
	engine := NewEngine(repo, &fakeResolver{}, testWebhookSecret)

	payload := eventPayload(t, "evt_8", EventCheckoutCompleted, map[string]interface{}{
		"id":             "cs_8",
		"payment_status": "paid",
		"metadata":       map[string]string{"userId": "user-1"},
	})
	sig := signPayload(t, payload, testWebhookSecret)

	first, err := engine.HandleEvent(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := engine.HandleEvent(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Applied)
	assert.Equal(t, 1, repo.planWrites, "redelivery must not write twice")
}

func TestHandleEventUnresolvedCorrelationAcks(t *testing.T) {
	repo := newFakeRepo()
	resolver := &fakeResolver{metadata: map[string]map[string]string{
		"sub_9": {},
	}}
	engine := NewEngine(repo, resolver, testWebhookSecret)

	payload := eventPayload(t, "evt_9", EventInvoicePaid, map[string]interface{}{
		"id":           "in_9",
		"subscription": "sub_9",
	})

	result, err := engine.HandleEvent(context.Background(), payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Empty(t, repo.plans)

	record := repo.events["stripe:evt_9"]
	require.NotNil(t, record)
	assert.NotNil(t, record.ProcessedAt)
	assert.NotEmpty(t, record.ProcessingError)
}

func TestHandleEventUnknownAccountAcks(t *testing.T) {
	repo := newFakeRepo()
	repo.missingUsers["ghost"] = true
	engine := NewEngine(repo, &fakeResolver{}, testWebhookSecret)

	payload := eventPayload(t, "evt_10", EventCheckoutCompleted, map[string]interface{}{
		"id":             "cs_10",
		"payment_status": "paid",
		"metadata":       map[string]string{"userId": "ghost"},
	})

	result, err := engine.HandleEvent(context.Background(), payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err, "unknown accounts must not trigger redelivery")
	assert.False(t, result.Applied)
}

func TestHandleEventStoreFailureIsRetryable(t *testing.T) {
	repo := newFakeRepo()
	repo.failPlanWrite = fmt.Errorf("%w: connection reset", ErrStoreWrite)
	engine := NewEngine(repo, &fakeResolver{}, testWebhookSecret)

	payload := eventPayload(t, "evt_11", EventCheckoutCompleted, map[string]interface{}{
		"id":             "cs_11",
		"payment_status": "paid",
		"metadata":       map[string]string{"userId": "user-1"},
	})
	sig := signPayload(t, payload, testWebhookSecret)

	_, err := engine.HandleEvent(context.Background(), payload, sig)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	// The redelivered event finds the unprocessed record and completes.
	repo.failPlanWrite = nil
	result, err := engine.HandleEvent(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.PlanPremium, repo.plans["user-1"])
}

func TestHandleEventUpstreamFailureIsRetryable(t *testing.T) {
	repo := newFakeRepo()
	resolver := &fakeResolver{err: fmt.Errorf("%w: timeout", ErrUpstreamUnavailable)}
	engine := NewEngine(repo, resolver, testWebhookSecret)

	payload := eventPayload(t, "evt_12", EventInvoicePaid, map[string]interface{}{
		"id":           "in_12",
		"subscription": "sub_12",
	})

	_, err := engine.HandleEvent(context.Background(), payload, signPayload(t, payload, testWebhookSecret))
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestHandleEventUnhandledTypeIgnored(t *testing.T) {
	repo := newFakeRepo()
	engine := NewEngine(repo, &fakeResolver{}, testWebhookSecret)

	payload := eventPayload(t, "evt_13", "customer.created", map[string]interface{}{
		"id": "cus_13",
	})

	result, err := engine.HandleEvent(context.Background(), payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Empty(t, repo.events)
}

func TestDowngrade(t *testing.T) {
	repo := newFakeRepo()
	repo.plans["user-1"] = models.PlanPremium
	engine := NewEngine(repo, &fakeResolver{}, testWebhookSecret)

	err := engine.Downgrade(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, repo.plans["user-1"])
}
