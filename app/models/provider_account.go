package models

import "time"

// ProviderAccount links an OAuth provider identity to a local user account
// so repeat logins resolve to the same account without relying on an email
// match.
type ProviderAccount struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserUID        string     `gorm:"type:varchar(64);not null;index" json:"user_uid"`
	Provider       string     `gorm:"type:varchar(32);not null;index:ux_provider_accounts_provider_user,unique,priority:1" json:"provider"`
	ProviderUserID string     `gorm:"type:varchar(191);not null;index:ux_provider_accounts_provider_user,unique,priority:2" json:"provider_user_id"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	ExpiresAt      *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
