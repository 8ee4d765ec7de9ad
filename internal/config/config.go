package config

import (
	"net/url"
	"os"
	"time"
)

type Config struct {
	Server       ServerConfig
	Gate         GateConfig
	RelyingParty RelyingPartyConfig
	Store        StoreConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type GateConfig struct {
	AccessCodes   string
	AdminCodeIDs  string
	BootstrapCode string
	SessionTTL    time.Duration
}

// RelyingPartyConfig is the single source of WebAuthn origin/RP-id truth.
// Both ceremony directions must be built from the same resolution;
// credentials registered under one origin derivation will not verify under
// another.
type RelyingPartyConfig struct {
	ID     string
	Name   string
	Origin string
}

type StoreConfig struct {
	Driver string
	Path   string
}

const (
	defaultRPID   = "localhost"
	defaultOrigin = "http://localhost:3000"
	defaultRPName = "Pricing Portal"
)

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Gate: GateConfig{
			AccessCodes:   getEnv("ACCESS_CODES", ""),
			AdminCodeIDs:  getEnv("ADMIN_CODE_IDS", ""),
			BootstrapCode: getEnv("BOOTSTRAP_ADMIN_CODE", ""),
			SessionTTL:    getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
		},
		RelyingParty: resolveRelyingParty(),
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "memory"),
			Path:   getEnv("STORE_PATH", "pricecal.db"),
		},
	}
}

// resolveRelyingParty resolves RP id, name, and origin with documented
// precedence: explicit WEBAUTHN_* overrides, then the deployment's
// PUBLIC_URL, then localhost defaults.
func resolveRelyingParty() RelyingPartyConfig {
	rp := RelyingPartyConfig{
		ID:     defaultRPID,
		Name:   defaultRPName,
		Origin: defaultOrigin,
	}

	if publicURL := os.Getenv("PUBLIC_URL"); publicURL != "" {
		if u, err := url.Parse(publicURL); err == nil && u.Hostname() != "" {
			rp.ID = u.Hostname()
			rp.Origin = u.Scheme + "://" + u.Host
		}
	}

	// Empty values count as unset for every override, so a deployment that
	// exports WEBAUTHN_RP_ID="" still gets the defaults.
	if id := os.Getenv("WEBAUTHN_RP_ID"); id != "" {
		rp.ID = id
	}
	if origin := os.Getenv("WEBAUTHN_ORIGIN"); origin != "" {
		rp.Origin = origin
	}
	if name := os.Getenv("WEBAUTHN_RP_NAME"); name != "" {
		rp.Name = name
	}

	return rp
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
