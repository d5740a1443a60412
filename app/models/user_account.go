package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// UserAccount mirrors the identity provider's user into the local store and
// carries the billing fields maintained by the payment reconciliation
// engine. Accounts are created on first authentication and never deleted by
// this service.
//
// Invariant: IsPremium always equals Plan == PlanPremium after a successful
// plan write; both fields are always written together.
type UserAccount struct {
	UID              string     `gorm:"primaryKey;type:varchar(64)" json:"uid" validate:"required"`
	Name             string     `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	Email            string     `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	AvatarURL        string     `gorm:"type:varchar(255);default:null" json:"avatar_url" validate:"max=255"`
	Plan             string     `gorm:"type:varchar(20);default:'free'" json:"plan" validate:"oneof=free premium"`
	IsPremium        bool       `gorm:"default:false" json:"is_premium"`
	StripeCustomerID string     `gorm:"type:varchar(64);default:'';index" json:"stripe_customer_id"`
	LastLoginAt      *time.Time `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *UserAccount) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NormalizePlan maps arbitrary plan strings to the closed plan set. Anything
// unrecognized degrades to free.
func NormalizePlan(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case PlanPremium:
		return PlanPremium
	default:
		return PlanFree
	}
}

// PlanIsPremium reports whether the given plan grants premium entitlements.
func PlanIsPremium(plan string) bool {
	return NormalizePlan(plan) == PlanPremium
}
