package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/pricecal/backend/internal/accesscode"
	"github.com/pricecal/backend/internal/config"
	"github.com/pricecal/backend/internal/session"
	"github.com/pricecal/backend/pkg/logger"
	"github.com/pricecal/backend/pkg/utils"
)

type AuthMiddleware struct {
	Cfg *config.Config
}

func NewAuthMiddleware(cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{Cfg: cfg}
}

func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000,http://127.0.0.1:3000",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
	})
}

func (a *AuthMiddleware) RequireSession(c *fiber.Ctx) error {
	if !session.Authenticated(c) {
		logger.Warn("session_missing", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return c.Next()
}

// RequireAdmin is the one place admin capability is decided: the session
// must be authenticated and its code identifier must either be the
// bootstrap sentinel or resolve to role=admin AND membership in the admin
// id list. The registry is re-parsed from configuration on every check.
func (a *AuthMiddleware) RequireAdmin(c *fiber.Ctx) error {
	if !session.Authenticated(c) {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	codeID := session.CodeID(c)
	if codeID == session.BootstrapCodeID {
		return c.Next()
	}

	codes := accesscode.ParseAccessCodes(a.Cfg.Gate.AccessCodes)
	adminIDs := accesscode.ParseAdminCodeIDs(a.Cfg.Gate.AdminCodeIDs)
	for i := range codes {
		if codes[i].ID == codeID && accesscode.IsAdmin(&codes[i], adminIDs) {
			return c.Next()
		}
	}

	logger.Warn("admin_denied", map[string]interface{}{
		"ip":      c.IP(),
		"path":    c.Path(),
		"code_id": codeID,
	})
	return utils.Error(c, fiber.StatusForbidden, "admin access required")
}
