// Package session owns the cookie pair that is the whole session state:
// a gate flag and the code identifier of whoever passed the gate. There is
// no server-side session table.
package session

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	GateCookie = "pc_gate"
	CodeCookie = "pc_code"

	// GrantedMarker is the only gate cookie value treated as authenticated.
	GrantedMarker = "granted"

	// BootstrapCodeID is the reserved code-identifier for bootstrap logins;
	// it never collides with a registry codeId because operators configure
	// those and this one is ours.
	BootstrapCodeID = "__bootstrap__"
)

type Manager struct {
	ttl    time.Duration
	secure bool
}

func NewManager(ttl time.Duration, secure bool) *Manager {
	return &Manager{ttl: ttl, secure: secure}
}

func (m *Manager) set(c *fiber.Ctx, name, value string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Issue sets the full cookie pair after a code-based login. The lifetime
// slides only on re-issuance, not on each request.
func (m *Manager) Issue(c *fiber.Ctx, codeID string) {
	maxAge := int(m.ttl.Seconds())
	m.set(c, GateCookie, GrantedMarker, maxAge)
	m.set(c, CodeCookie, codeID, maxAge)
}

// Refresh re-issues the gate flag alone, used after a successful Face ID
// login where no access code was typed.
func (m *Manager) Refresh(c *fiber.Ctx) {
	m.set(c, GateCookie, GrantedMarker, int(m.ttl.Seconds()))
}

func (m *Manager) Clear(c *fiber.Ctx) {
	for _, name := range []string{GateCookie, CodeCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Now().Add(-time.Hour),
			HTTPOnly: true,
			Secure:   m.secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
}

// Authenticated treats any gate cookie value other than the marker as
// unauthenticated.
func Authenticated(c *fiber.Ctx) bool {
	return c.Cookies(GateCookie) == GrantedMarker
}

// CodeID returns the code identifier the session was issued for, or the
// empty string for Face ID-only sessions.
func CodeID(c *fiber.Ctx) string {
	return c.Cookies(CodeCookie)
}
