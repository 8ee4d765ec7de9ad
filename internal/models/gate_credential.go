package models

import "time"

// GateCredential is a registered Face ID credential. The key is the
// base64url form of the raw credential id. Only the sign count and
// last-used timestamp change after creation; there is no revocation path.
type GateCredential struct {
	BaseModel
	CredentialID    string     `json:"credentialId" gorm:"type:varchar(512);uniqueIndex;not null"`
	PublicKey       []byte     `json:"-" gorm:"type:blob;not null"`
	AttestationType string     `json:"-" gorm:"type:varchar(64)"`
	AAGUID          []byte     `json:"-" gorm:"column:aaguid;type:blob"`
	SignCount       uint32     `json:"-" gorm:"default:0"`
	Transports      string     `json:"-" gorm:"type:text"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
}
