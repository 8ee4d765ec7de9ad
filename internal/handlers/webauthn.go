package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gofiber/fiber/v2"
	"github.com/pricecal/backend/internal/models"
	"github.com/pricecal/backend/internal/session"
	"github.com/pricecal/backend/internal/store"
	"github.com/pricecal/backend/pkg/logger"
	"github.com/pricecal/backend/pkg/utils"
)

type WebAuthnHandler struct {
	Store    store.Store
	WebAuthn *webauthn.WebAuthn
	Sessions *session.Manager
}

func NewWebAuthnHandler(s store.Store, wa *webauthn.WebAuthn, sessions *session.Manager) *WebAuthnHandler {
	return &WebAuthnHandler{Store: s, WebAuthn: wa, Sessions: sessions}
}

// The portal has no per-user accounts: one shared, non-secret identity backs
// every registration against a deployment. Authenticators are told apart by
// their credential ids, not by user handles.
var sharedUserHandle = []byte("pricing-portal-operator")

type gateUser struct {
	creds []webauthn.Credential
}

func (u *gateUser) WebAuthnID() []byte { return sharedUserHandle }

func (u *gateUser) WebAuthnName() string { return "operator" }

func (u *gateUser) WebAuthnDisplayName() string { return "Pricing Portal" }

func (u *gateUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func credentialKey(rawID []byte) string {
	return base64.RawURLEncoding.EncodeToString(rawID)
}

func toLibraryCredential(c store.Credential) (webauthn.Credential, error) {
	rawID, err := base64.RawURLEncoding.DecodeString(c.ID)
	if err != nil {
		return webauthn.Credential{}, err
	}

	transports := make([]protocol.AuthenticatorTransport, len(c.Transports))
	for i, t := range c.Transports {
		transports[i] = protocol.AuthenticatorTransport(t)
	}

	return webauthn.Credential{
		ID:              rawID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}, nil
}

func (h *WebAuthnHandler) loadGateUser(c *fiber.Ctx) (*gateUser, error) {
	stored, err := h.Store.ListCredentials(c.Context())
	if err != nil {
		return nil, err
	}

	user := &gateUser{creds: make([]webauthn.Credential, 0, len(stored))}
	for _, sc := range stored {
		cred, err := toLibraryCredential(sc)
		if err != nil {
			// An undecodable id cannot participate in a ceremony; skip it
			// rather than blocking every login.
			logger.Error("credential_decode_failed", err, map[string]interface{}{
				"credential_id": sc.ID,
			})
			continue
		}
		user.creds = append(user.creds, cred)
	}
	return user, nil
}

func (h *WebAuthnHandler) saveChallenge(c *fiber.Ctx, sd *webauthn.SessionData, ceremony models.CeremonyType) error {
	sessionJSON, err := json.Marshal(sd)
	if err != nil {
		return err
	}
	return h.Store.SaveChallenge(c.Context(), store.Challenge{
		Value:       sd.Challenge,
		Type:        ceremony,
		SessionData: sessionJSON,
	})
}

func (h *WebAuthnHandler) consumeChallenge(c *fiber.Ctx, value string, ceremony models.CeremonyType) (*webauthn.SessionData, bool) {
	challenge, err := h.Store.ConsumeChallenge(c.Context(), value)
	if err != nil || challenge.Type != ceremony {
		return nil, false
	}

	var sd webauthn.SessionData
	if err := json.Unmarshal(challenge.SessionData, &sd); err != nil {
		return nil, false
	}
	return &sd, true
}

func (h *WebAuthnHandler) RegisterBegin(c *fiber.Ctx) error {
	user, err := h.loadGateUser(c)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load credentials")
	}

	// Already-registered authenticators are excluded so the same device
	// cannot be enrolled twice.
	exclusions := make([]protocol.CredentialDescriptor, len(user.creds))
	for i, cred := range user.creds {
		exclusions[i] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
		}
	}

	options, sd, err := h.WebAuthn.BeginRegistration(user,
		webauthn.WithExclusions(exclusions),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationPreferred,
		}),
	)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to begin registration")
	}

	if err := h.saveChallenge(c, sd, models.CeremonyRegistration); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to save challenge")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"options": options})
}

type ceremonyFinishRequest struct {
	Response  json.RawMessage `json:"response"`
	Challenge string          `json:"challenge"`
}

func (h *WebAuthnHandler) RegisterFinish(c *fiber.Ctx) error {
	var req ceremonyFinishRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Challenge == "" {
		return utils.Error(c, fiber.StatusBadRequest, "challenge is required")
	}

	// Consumed before anything else: whatever happens next, this challenge
	// is spent.
	sd, ok := h.consumeChallenge(c, req.Challenge, models.CeremonyRegistration)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid or expired challenge")
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "registration verification failed")
	}

	user, err := h.loadGateUser(c)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load credentials")
	}

	credential, err := h.WebAuthn.CreateCredential(user, *sd, parsed)
	if err != nil {
		logger.Warn("webauthn_registration_rejected", map[string]interface{}{
			"ip":    c.IP(),
			"error": err.Error(),
		})
		return utils.Error(c, fiber.StatusBadRequest, "registration verification failed")
	}

	transports := make([]string, len(credential.Transport))
	for i, t := range credential.Transport {
		transports[i] = string(t)
	}

	stored := store.Credential{
		ID:              credentialKey(credential.ID),
		PublicKey:       credential.PublicKey,
		AttestationType: credential.AttestationType,
		AAGUID:          credential.Authenticator.AAGUID,
		SignCount:       credential.Authenticator.SignCount,
		Transports:      transports,
	}
	if err := h.Store.SaveCredential(c.Context(), stored); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to save credential")
	}

	logger.Info("webauthn_credential_registered", map[string]interface{}{
		"credential_id": stored.ID,
		"transports":    transports,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"verified": true,
		"message":  "Face ID registered",
	})
}

func (h *WebAuthnHandler) LoginBegin(c *fiber.Ctx) error {
	user, err := h.loadGateUser(c)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load credentials")
	}
	if len(user.creds) == 0 {
		return utils.Error(c, fiber.StatusNotFound, "No Face ID credentials found on this device. Please register Face ID first.")
	}

	options, sd, err := h.WebAuthn.BeginLogin(user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to begin authentication")
	}

	if err := h.saveChallenge(c, sd, models.CeremonyAuthentication); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to save challenge")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"options": options})
}

func (h *WebAuthnHandler) LoginFinish(c *fiber.Ctx) error {
	var req ceremonyFinishRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Challenge == "" {
		return utils.Error(c, fiber.StatusBadRequest, "challenge is required")
	}

	sd, ok := h.consumeChallenge(c, req.Challenge, models.CeremonyAuthentication)
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "invalid or expired challenge")
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "authentication verification failed")
	}

	key := credentialKey(parsed.RawID)
	stored, err := h.Store.GetCredential(c.Context(), key)
	if err != nil {
		return utils.Error(c, fiber.StatusNotFound, "credential not found")
	}

	cred, err := toLibraryCredential(*stored)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load credential")
	}
	user := &gateUser{creds: []webauthn.Credential{cred}}

	credential, err := h.WebAuthn.ValidateLogin(user, *sd, parsed)
	if err != nil {
		logger.Warn("webauthn_login_rejected", map[string]interface{}{
			"ip":            c.IP(),
			"credential_id": key,
			"error":         err.Error(),
		})
		return utils.Error(c, fiber.StatusBadRequest, "authentication verification failed")
	}

	// The library already ran the monotonic clone check; the new counter
	// value simply replaces the stored one.
	now := time.Now()
	stored.SignCount = credential.Authenticator.SignCount
	stored.LastUsedAt = &now
	if err := h.Store.SaveCredential(c.Context(), *stored); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update credential")
	}

	h.Sessions.Refresh(c)

	logger.Info("webauthn_login", map[string]interface{}{
		"credential_id": key,
		"sign_count":    stored.SignCount,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"verified": true,
		"message":  "Face ID login successful",
	})
}
