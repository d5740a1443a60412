package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/gabrielluis21/intelliresume-backend/app/models"
)

// UserAccountRepository defines the interface for user account operations
type UserAccountRepository interface {
	Create(account *models.UserAccount) error
	GetByUID(uid string) (*models.UserAccount, error)
	GetByEmail(email string) (*models.UserAccount, error)
	GetByProvider(provider, providerUserID string) (*models.UserAccount, error)
	Update(account *models.UserAccount) error
	UpdateLastLogin(uid string, at time.Time) error

	LinkProvider(link *models.ProviderAccount) error
	UpdateProviderTokens(provider, providerUserID, accessToken, refreshToken string, expiresAt *time.Time) error
}

// Repositories holds all repository instances
type Repositories struct {
	UserAccount UserAccountRepository
}

// NewRepositories creates all repositories backed by the given database
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		UserAccount: NewUserAccountRepository(db),
	}
}
