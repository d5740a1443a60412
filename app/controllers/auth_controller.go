package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/gabrielluis21/intelliresume-backend/app/models"
	"github.com/gabrielluis21/intelliresume-backend/app/repository"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/env"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/identity"
)

var (
	authUsers  repository.UserAccountRepository
	authStates *identity.StateCodec
	authMinter *identity.Minter
)

// InitializeAuthController wires the auth handlers with their dependencies
func InitializeAuthController() {
	authUsers = repository.GetGlobalFactory().GetUserAccountRepository()
	authStates = identity.NewStateCodecFromEnv()
	authMinter = identity.NewMinterFromEnv()
}

// HandleAuthBegin starts the provider handshake. The frontend redirect
// target travels inside a signed state value.
func HandleAuthBegin(c *fiber.Ctx) error {
	redirect := sanitizeRedirect(c.Query("redirect_url"))

	state, err := authStates.Encode(redirect)
	if err != nil {
		log.Printf("oauth: encoding state failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "auth_begin_failed",
		})
	}
	c.Request().URI().QueryArgs().Set("state", state)

	return gothfiber.BeginAuthHandler(c)
}

// HandleAuthCallback completes the provider flow, mirrors the external
// identity into the account store and hands a login token back to the
// frontend.
func HandleAuthCallback(c *fiber.Ctx) error {
	redirect, err := authStates.Decode(c.Query("state"))
	if err != nil {
		log.Printf("oauth: rejected state: %v", err)
		return failureRedirect(c)
	}

	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Printf("oauth: provider flow failed: %v", err)
		return failureRedirect(c)
	}

	account, err := authUsers.GetByProvider(u.Provider, u.UserID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		account, err = adoptIdentity(u.Provider, u.UserID, u.Email, firstNonEmpty(u.Name, u.NickName, "User"), u.AvatarURL, u.AccessToken, u.RefreshToken, expiryOf(u.ExpiresAt))
		if err != nil {
			log.Printf("oauth: adopting identity failed: %v", err)
			return failureRedirect(c)
		}
	case err != nil:
		log.Printf("oauth: account lookup failed: %v", err)
		return failureRedirect(c)
	default:
		if err := authUsers.UpdateProviderTokens(u.Provider, u.UserID, u.AccessToken, u.RefreshToken, expiryOf(u.ExpiresAt)); err != nil {
			log.Printf("oauth: token refresh failed: %v", err)
		}
		refreshProfile(account, firstNonEmpty(u.Name, u.NickName), u.AvatarURL)
	}

	if err := authUsers.UpdateLastLogin(account.UID, time.Now()); err != nil {
		log.Printf("oauth: last login stamp failed: %v", err)
	}

	token, err := authMinter.MintLoginToken(account.UID, account.Email)
	if err != nil {
		log.Printf("oauth: minting login token failed: %v", err)
		return failureRedirect(c)
	}

	separator := "?"
	if strings.Contains(redirect, "?") {
		separator = "&"
	}
	return c.Redirect(redirect+separator+"token="+url.QueryEscape(token), fiber.StatusSeeOther)
}

// adoptIdentity matches an unknown external identity to an existing
// account by email, or creates a fresh account, and links the provider.
func adoptIdentity(provider, providerUserID, email, name, avatarURL, accessToken, refreshToken string, expiresAt *time.Time) (*models.UserAccount, error) {
	var account *models.UserAccount
	if email != "" {
		existing, err := authUsers.GetByEmail(email)
		if err == nil {
			account = existing
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if account == nil {
		if email == "" {
			// Unique placeholder to satisfy the email index
			email = fmt.Sprintf("%s_%s@%s.oauth.local", provider, providerUserID, provider)
		}
		account = &models.UserAccount{
			UID:       uuid.NewString(),
			Name:      name,
			Email:     email,
			AvatarURL: avatarURL,
			Plan:      models.PlanFree,
		}
		if err := authUsers.Create(account); err != nil {
			return nil, err
		}
	}

	link := &models.ProviderAccount{
		UserUID:        account.UID,
		Provider:       provider,
		ProviderUserID: providerUserID,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		ExpiresAt:      expiresAt,
	}
	if err := authUsers.LinkProvider(link); err != nil {
		return nil, err
	}
	return account, nil
}

func refreshProfile(account *models.UserAccount, name, avatarURL string) {
	changed := false
	if name != "" && name != account.Name {
		account.Name = name
		changed = true
	}
	if avatarURL != "" && avatarURL != account.AvatarURL {
		account.AvatarURL = avatarURL
		changed = true
	}
	if changed {
		if err := authUsers.Update(account); err != nil {
			log.Printf("oauth: profile refresh failed: %v", err)
		}
	}
}

// sanitizeRedirect only allows redirects back into the frontend
func sanitizeRedirect(redirect string) string {
	frontend := strings.TrimRight(env.GetEnv("FRONTEND_URL", ""), "/")
	if redirect == "" || !strings.HasPrefix(redirect, frontend+"/") {
		return frontend + "/home"
	}
	return redirect
}

func failureRedirect(c *fiber.Ctx) error {
	frontend := strings.TrimRight(env.GetEnv("FRONTEND_URL", ""), "/")
	return c.Redirect(frontend+"/login?error=auth_failed", fiber.StatusSeeOther)
}

func expiryOf(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
