package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pricecal/backend/internal/accesscode"
	"github.com/pricecal/backend/internal/config"
	"github.com/pricecal/backend/pkg/logger"
	"github.com/pricecal/backend/pkg/utils"
)

type AdminHandler struct {
	Cfg *config.Config
}

func NewAdminHandler(cfg *config.Config) *AdminHandler {
	return &AdminHandler{Cfg: cfg}
}

// ListCodes returns the parsed registry and the admin id list. Code values
// are secrets and never leave the server; the AccessCode JSON shape hides
// them.
func (h *AdminHandler) ListCodes(c *fiber.Ctx) error {
	codes := accesscode.ParseAccessCodes(h.Cfg.Gate.AccessCodes)
	if codes == nil {
		codes = []accesscode.AccessCode{}
	}
	adminIDs := accesscode.ParseAdminCodeIDs(h.Cfg.Gate.AdminCodeIDs)
	if adminIDs == nil {
		adminIDs = []string{}
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"codes":        codes,
		"adminCodeIds": adminIDs,
	})
}

type codeInput struct {
	CodeID     string     `json:"codeId"`
	CodeValue  string     `json:"codeValue"`
	Role       string     `json:"role"`
	Label      string     `json:"label"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	MaxDevices int        `json:"maxDevices"`
}

type updateCodesRequest struct {
	Codes []codeInput `json:"codes"`
}

// UpdateCodes takes a full replacement registry and returns its serialized
// form — the ACCESS_CODES value the operator applies to the deployment.
// The registry source is environment configuration, so updates are whole
// round trips, never in-place edits.
func (h *AdminHandler) UpdateCodes(c *fiber.Ctx) error {
	var req updateCodesRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Codes) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "codes are required")
	}

	codes := make([]accesscode.AccessCode, len(req.Codes))
	for i, input := range req.Codes {
		id := strings.TrimSpace(input.CodeID)
		value := strings.TrimSpace(input.CodeValue)
		if id == "" || value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "codeId and codeValue are required")
		}

		role := accesscode.RoleUser
		if strings.EqualFold(strings.TrimSpace(input.Role), string(accesscode.RoleAdmin)) {
			role = accesscode.RoleAdmin
		}

		codes[i] = accesscode.AccessCode{
			ID:         id,
			Value:      value,
			Role:       role,
			Label:      strings.TrimSpace(input.Label),
			ExpiresAt:  input.ExpiresAt,
			MaxDevices: input.MaxDevices,
		}
	}

	serialized := accesscode.SerializeAccessCodes(codes)

	logger.Info("access_codes_serialized", map[string]interface{}{
		"count": len(codes),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"accessCodes": serialized,
	})
}
