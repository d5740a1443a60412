package oauth

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/linkedin"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/cache"
	"github.com/gabrielluis21/intelliresume-backend/internal/pkg/env"
)

// Setup initializes Goth providers and the session store used during
// the OAuth handshake. Safe to call multiple times; providers will just
// be re-registered.
func Setup() {
	base := strings.TrimRight(env.GetEnv("BACKEND_URL", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "3000")
	}

	goth.UseProviders(
		linkedin.New(
			env.GetEnv("LINKEDIN_KEY", ""),
			env.GetEnv("LINKEDIN_SECRET", ""),
			base+"/auth/linkedin/callback",
			"openid", "profile", "email",
		),
	)

	// Handshake state lives in Redis, same connection as the app cache
	// but a separate database.
	cacheClient := cache.GetClient()
	cacheOpts := cacheClient.Options()
	host, port := "127.0.0.1", 6379
	if cacheOpts != nil && cacheOpts.Addr != "" {
		if h, p, err := net.SplitHostPort(cacheOpts.Addr); err == nil {
			host = h
			if parsed, e := strconv.Atoi(p); e == nil {
				port = parsed
			}
		} else {
			host = cacheOpts.Addr
		}
	}

	gothfiber.SessionStore = session.New(session.Config{
		Storage: redisstorage.New(redisstorage.Config{
			Host:     host,
			Port:     port,
			Username: cacheOpts.Username,
			Password: cacheOpts.Password,
			Database: 2,
			Reset:    false,
		}),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     time.Hour,
	})
}
