package models

import "time"

type CeremonyType string

const (
	CeremonyRegistration   CeremonyType = "registration"
	CeremonyAuthentication CeremonyType = "authentication"
)

// CeremonyChallenge is a pending WebAuthn challenge, keyed by its own value.
// A challenge is single-use: it is removed on its first consumption attempt.
type CeremonyChallenge struct {
	BaseModel
	Value       string       `json:"-" gorm:"type:varchar(255);uniqueIndex;not null"`
	Type        CeremonyType `json:"-" gorm:"type:varchar(20);not null"`
	SessionData string       `json:"-" gorm:"type:text;not null"`
	IssuedAt    time.Time    `json:"-" gorm:"not null;index"`
}
