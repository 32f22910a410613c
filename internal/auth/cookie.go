package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// SessionCookies owns the single named session cookie: one read path,
// one write path, one clear path, all scoped to the current
// request/response pair.
type SessionCookies struct {
	name   string
	ttl    time.Duration
	secure bool
}

// NewSessionCookies builds the store. secure should be true in
// production so the cookie is only sent over TLS.
func NewSessionCookies(name string, ttl time.Duration, secure bool) *SessionCookies {
	if name == "" {
		name = "auth-token"
	}
	return &SessionCookies{name: name, ttl: ttl, secure: secure}
}

// Name returns the cookie name.
func (s *SessionCookies) Name() string {
	return s.name
}

// Read returns the raw token from the request, or "" when absent.
func (s *SessionCookies) Read(c *fiber.Ctx) string {
	return c.Cookies(s.name)
}

// Write sets the session cookie with a max-age matching the token TTL.
func (s *SessionCookies) Write(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     s.name,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.ttl),
		MaxAge:   int(s.ttl.Seconds()),
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Clear removes the cookie. Clearing an already-cleared cookie is a no-op.
func (s *SessionCookies) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
