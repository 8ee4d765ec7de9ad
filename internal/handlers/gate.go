package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pricecal/backend/internal/accesscode"
	"github.com/pricecal/backend/internal/config"
	"github.com/pricecal/backend/internal/session"
	"github.com/pricecal/backend/pkg/logger"
	"github.com/pricecal/backend/pkg/utils"
)

type GateHandler struct {
	Cfg      *config.Config
	Sessions *session.Manager
}

func NewGateHandler(cfg *config.Config, sessions *session.Manager) *GateHandler {
	return &GateHandler{Cfg: cfg, Sessions: sessions}
}

type verifyCodeRequest struct {
	Code string `json:"code"`
}

func (h *GateHandler) Verify(c *fiber.Ctx) error {
	var req verifyCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Code) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "code is required")
	}

	codes := accesscode.ParseAccessCodes(h.Cfg.Gate.AccessCodes)
	adminIDs := accesscode.ParseAdminCodeIDs(h.Cfg.Gate.AdminCodeIDs)

	match, err := accesscode.Validate(req.Code, codes, adminIDs, h.Cfg.Gate.BootstrapCode)
	if err != nil {
		logger.Warn("gate_access_denied", map[string]interface{}{
			"ip":     c.IP(),
			"reason": err.Error(),
		})
		if errors.Is(err, accesscode.ErrCodeExpired) {
			return utils.Error(c, fiber.StatusUnauthorized, "Access code has expired")
		}
		return utils.Error(c, fiber.StatusUnauthorized, "Invalid access code")
	}

	codeID := session.BootstrapCodeID
	isAdmin := true
	if !match.Bootstrap {
		codeID = match.Code.ID
		isAdmin = accesscode.IsAdmin(match.Code, adminIDs)
	}

	h.Sessions.Issue(c, codeID)

	logger.Info("gate_access_granted", map[string]interface{}{
		"ip":        c.IP(),
		"code_id":   codeID,
		"admin":     isAdmin,
		"bootstrap": match.Bootstrap,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":     true,
		"isAdmin":     isAdmin,
		"isBootstrap": match.Bootstrap,
		"redirectTo":  "/",
	})
}

func (h *GateHandler) Logout(c *fiber.Ctx) error {
	h.Sessions.Clear(c)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "signed out"})
}
