package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pricecal/backend/internal/config"
	"github.com/pricecal/backend/internal/handlers"
	"github.com/pricecal/backend/internal/middleware"
	"github.com/pricecal/backend/internal/session"
	"github.com/pricecal/backend/internal/store"
	"github.com/pricecal/backend/pkg/logger"
	"gorm.io/gorm"
)

func newStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemory(), nil
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		return store.NewGorm(db)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func main() {
	logger.Init()

	cfg := config.Load()

	credentialStore, err := newStore(cfg.Store)
	if err != nil {
		log.Fatalf("store initialization failed: %v", err)
	}

	// One WebAuthn instance from one relying-party resolution; registration
	// and authentication must never disagree on origin or RP id.
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RelyingParty.ID,
		RPDisplayName: cfg.RelyingParty.Name,
		RPOrigins:     []string{cfg.RelyingParty.Origin},
	})
	if err != nil {
		log.Fatalf("webauthn initialization failed: %v", err)
	}

	sessions := session.NewManager(cfg.Gate.SessionTTL, cfg.IsProduction())

	gateHandler := handlers.NewGateHandler(cfg, sessions)
	webAuthnHandler := handlers.NewWebAuthnHandler(credentialStore, wa, sessions)
	adminHandler := handlers.NewAdminHandler(cfg)

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

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"address":      listenAddr,
		"rp_id":        cfg.RelyingParty.ID,
		"origin":       cfg.RelyingParty.Origin,
		"store_driver": cfg.Store.Driver,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
