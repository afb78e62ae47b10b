package users

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// SessionCookieName holds the access token for browser clients
const SessionCookieName = "access_token"

// SetSessionCookie writes the access token cookie. HttpOnly keeps it away
// from scripts; Secure is dropped for local development over plain http.
func SetSessionCookie(c *fiber.Ctx, token string, ttl time.Duration, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookie expires the access token cookie. The token itself stays
// valid until its expiry, logout only removes it from the browser.
func ClearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// TokenFromRequest extracts the access token, preferring the Authorization
// bearer header over the session cookie when both are present
func TokenFromRequest(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return c.Cookies(SessionCookieName)
}
