package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/gabrielluis21/intelliresume-backend/app/models"
)

// userAccountRepository implements the UserAccountRepository interface
type userAccountRepository struct {
	db *gorm.DB
}

// NewUserAccountRepository creates a new user account repository instance
func NewUserAccountRepository(db *gorm.DB) UserAccountRepository {
	return &userAccountRepository{db: db}
}

// Create creates a new user account in the database
func (r *userAccountRepository) Create(account *models.UserAccount) error {
	return r.db.Create(account).Error
}

// GetByUID retrieves an account by its stable identifier
func (r *userAccountRepository) GetByUID(uid string) (*models.UserAccount, error) {
	var account models.UserAccount
	err := r.db.Where("uid = ?", uid).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByEmail retrieves an account by its email address
func (r *userAccountRepository) GetByEmail(email string) (*models.UserAccount, error) {
	var account models.UserAccount
	err := r.db.Where("email = ?", email).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByProvider resolves an external identity to its local account
func (r *userAccountRepository) GetByProvider(provider, providerUserID string) (*models.UserAccount, error) {
	var link models.ProviderAccount
	err := r.db.Where("provider = ? AND provider_user_id = ?", provider, providerUserID).First(&link).Error
	if err != nil {
		return nil, err
	}
	return r.GetByUID(link.UserUID)
}

// Update persists profile changes to an existing account
func (r *userAccountRepository) Update(account *models.UserAccount) error {
	return r.db.Save(account).Error
}

// UpdateLastLogin stamps the account's last successful login
func (r *userAccountRepository) UpdateLastLogin(uid string, at time.Time) error {
	return r.db.Model(&models.UserAccount{}).
		Where("uid = ?", uid).
		Update("last_login_at", at).Error
}

// LinkProvider attaches an external identity to an account
func (r *userAccountRepository) LinkProvider(link *models.ProviderAccount) error {
	return r.db.Create(link).Error
}

// UpdateProviderTokens refreshes the stored OAuth tokens for a linked identity
func (r *userAccountRepository) UpdateProviderTokens(provider, providerUserID, accessToken, refreshToken string, expiresAt *time.Time) error {
	return r.db.Model(&models.ProviderAccount{}).
		Where("provider = ? AND provider_user_id = ?", provider, providerUserID).
		Updates(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_at":    expiresAt,
		}).Error
}
