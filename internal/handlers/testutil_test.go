package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pricecal/backend/internal/config"
	"github.com/pricecal/backend/internal/middleware"
	"github.com/pricecal/backend/internal/session"
	"github.com/pricecal/backend/internal/store"
	"github.com/pricecal/backend/pkg/logger"
)

type testEnv struct {
	app   *fiber.App
	store store.Store
	cfg   *config.Config
}

type gateSettings struct {
	accessCodes   string
	adminCodeIDs  string
	bootstrapCode string
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T, settings gateSettings) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
	})

	cfg := &config.Config{
		Server: config.ServerConfig{Port: "8080", Env: "test"},
		Gate: config.GateConfig{
			AccessCodes:   settings.accessCodes,
			AdminCodeIDs:  settings.adminCodeIDs,
			BootstrapCode: settings.bootstrapCode,
			SessionTTL:    30 * 24 * time.Hour,
		},
		RelyingParty: config.RelyingPartyConfig{
			ID:     "localhost",
			Name:   "Pricing Portal",
			Origin: "http://localhost:3000",
		},
		Store: config.StoreConfig{Driver: "memory"},
	}

	credentialStore := store.NewMemory()

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RelyingParty.ID,
		RPDisplayName: cfg.RelyingParty.Name,
		RPOrigins:     []string{cfg.RelyingParty.Origin},
	})
	if err != nil {
		t.Fatalf("failed creating webauthn instance: %v", err)
	}

	sessions := session.NewManager(cfg.Gate.SessionTTL, false)

	gateHandler := NewGateHandler(cfg, sessions)
	webAuthnHandler := NewWebAuthnHandler(credentialStore, wa, sessions)
	adminHandler := NewAdminHandler(cfg)
	authMiddleware := middleware.NewAuthMiddleware(cfg)

	app := fiber.New(fiber.Config{AppName: "pricecal-gate"})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	gateRoutes := api.Group("/gate")
	gateRoutes.Post("/verify", gateHandler.Verify)
	gateRoutes.Post("/logout", gateHandler.Logout)

	webAuthnRoutes := api.Group("/webauthn")
	webAuthnRoutes.Post("/register/options", authMiddleware.RequireSession, webAuthnHandler.RegisterBegin)
	webAuthnRoutes.Post("/register/verify", authMiddleware.RequireSession, webAuthnHandler.RegisterFinish)
	webAuthnRoutes.Post("/login/options", webAuthnHandler.LoginBegin)
	webAuthnRoutes.Post("/login/verify", webAuthnHandler.LoginFinish)

	adminRoutes := api.Group("/admin", authMiddleware.RequireSession, authMiddleware.RequireAdmin)
	adminRoutes.Get("/codes", adminHandler.ListCodes)
	adminRoutes.Put("/codes", adminHandler.UpdateCodes)

	return &testEnv{app: app, store: credentialStore, cfg: cfg}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func cookieHeader(cookies []*http.Cookie) map[string]string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Value != "" {
			pairs = append(pairs, c.Name+"="+c.Value)
		}
	}
	if len(pairs) == 0 {
		return map[string]string{}
	}
	return map[string]string{"Cookie": strings.Join(pairs, "; ")}
}

func loginWithCode(t *testing.T, env *testEnv, code string) map[string]string {
	t.Helper()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/gate/verify", map[string]any{"code": code}, nil)
	assertStatus(t, resp, http.StatusOK)
	return cookieHeader(resp.Cookies())
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
