package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gabrielluis21/intelliresume-backend/app/models"
)

// Repository is the persistence surface the billing engine writes
// through. Plan changes only happen via this interface.
type Repository interface {
	SetUserPlan(ctx context.Context, userID, plan string) error
	GetBillingCustomerID(ctx context.Context, userID string) (string, error)
	SetBillingCustomerIDIfEmpty(ctx context.Context, userID, customerID string) (string, error)
	RecordWebhookEvent(ctx context.Context, provider, eventID, eventType string, payload []byte) (*models.BillingWebhookEvent, bool, error)
	MarkWebhookProcessed(ctx context.Context, recordID uint, procErr error) error
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// SetUserPlan writes plan and the derived premium flag in one update so
// they can never diverge.
func (r *GormRepository) SetUserPlan(ctx context.Context, userID, plan string) error {
	res := r.db.WithContext(ctx).
		Model(&models.UserAccount{}).
		Where("uid = ?", userID).
		Updates(map[string]interface{}{
			"plan":       plan,
			"is_premium": plan == models.PlanPremium,
		})
	if res.Error != nil {
		return fmt.Errorf("%w: updating plan for %s: %v", ErrStoreWrite, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero affected rows both for a missing account
		// and for a no-op update to the same values.
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.UserAccount{}).Where("uid = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("%w: checking account %s: %v", ErrStoreWrite, userID, err)
		}
		if count == 0 {
			return ErrAccountNotFound
		}
	}
	return nil
}

func (r *GormRepository) GetBillingCustomerID(ctx context.Context, userID string) (string, error) {
	var user models.UserAccount
	err := r.db.WithContext(ctx).Select("stripe_customer_id").Where("uid = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: loading account %s: %v", ErrStoreWrite, userID, err)
	}
	return user.StripeCustomerID, nil
}

// SetBillingCustomerIDIfEmpty stores the customer id only when the
// account has none yet and returns whichever id ended up persisted.
// Concurrent callers race on the conditional update; the loser reads
// back the winner's value.
func (r *GormRepository) SetBillingCustomerIDIfEmpty(ctx context.Context, userID, customerID string) (string, error) {
	res := r.db.WithContext(ctx).
		Model(&models.UserAccount{}).
		Where("uid = ? AND stripe_customer_id = ''", userID).
		Update("stripe_customer_id", customerID)
	if res.Error != nil {
		return "", fmt.Errorf("%w: storing customer id for %s: %v", ErrStoreWrite, userID, res.Error)
	}
	return r.GetBillingCustomerID(ctx, userID)
}

// RecordWebhookEvent inserts the event for auditing and deduplication.
// Returns the stored record and whether this call created it. A lost
// insert race reads back the row the winner created.
func (r *GormRepository) RecordWebhookEvent(ctx context.Context, provider, eventID, eventType string, payload []byte) (*models.BillingWebhookEvent, bool, error) {
	record := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(payload),
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(record)
	if res.Error != nil {
		return nil, false, fmt.Errorf("%w: recording event %s: %v", ErrStoreWrite, eventID, res.Error)
	}
	if res.RowsAffected > 0 {
		return record, true, nil
	}

	var existing models.BillingWebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, eventID).
		First(&existing).Error
	if err != nil {
		return nil, false, fmt.Errorf("%w: loading event %s: %v", ErrStoreWrite, eventID, err)
	}
	return &existing, false, nil
}

func (r *GormRepository) MarkWebhookProcessed(ctx context.Context, recordID uint, procErr error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": "",
	}
	if procErr != nil {
		updates["processing_error"] = procErr.Error()
	}

	err := r.db.WithContext(ctx).
		Model(&models.BillingWebhookEvent{}).
		Where("id = ?", recordID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("%w: marking event %d processed: %v", ErrStoreWrite, recordID, err)
	}
	return nil
}
