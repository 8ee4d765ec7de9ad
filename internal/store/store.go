// Package store holds the process-wide ceremony state: pending WebAuthn
// challenges and registered credentials. Any concurrent request may touch
// it, so challenge consumption is a single atomic remove-and-return — the
// first verifier wins and every later attempt observes the challenge absent.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pricecal/backend/internal/models"
)

var (
	ErrChallengeNotFound  = errors.New("challenge not found or expired")
	ErrCredentialNotFound = errors.New("credential not found")
)

// ChallengeTTL bounds how long an issued challenge stays consumable. A
// challenge past the window is treated as absent even if never consumed.
const ChallengeTTL = 5 * time.Minute

// Challenge is one pending ceremony, keyed by the challenge value the
// client must echo back. SessionData carries the serialized library session.
type Challenge struct {
	Value       string
	Type        models.CeremonyType
	SessionData []byte
	IssuedAt    time.Time
}

// Credential is a registered public-key credential. ID is the base64url
// form of the raw credential id and is the storage key.
type Credential struct {
	ID              string
	PublicKey       []byte
	AttestationType string
	AAGUID          []byte
	SignCount       uint32
	Transports      []string
	CreatedAt       time.Time
	LastUsedAt      *time.Time
}

type Store interface {
	SaveChallenge(ctx context.Context, challenge Challenge) error
	// ConsumeChallenge atomically removes the challenge and returns it.
	// Absent, already-consumed, or expired challenges all yield
	// ErrChallengeNotFound; in every case the challenge is gone afterwards.
	ConsumeChallenge(ctx context.Context, value string) (*Challenge, error)

	// SaveCredential inserts or replaces by credential id.
	SaveCredential(ctx context.Context, credential Credential) error
	GetCredential(ctx context.Context, id string) (*Credential, error)
	ListCredentials(ctx context.Context) ([]Credential, error)
}

func (c *Challenge) expired(now time.Time) bool {
	return now.Sub(c.IssuedAt) > ChallengeTTL
}
