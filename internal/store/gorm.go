package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pricecal/backend/internal/models"
	"gorm.io/gorm"
)

// Gorm is the persistent Store variant, for deployments that want
// registered credentials to survive restarts. It honors the same atomic
// consumption contract: the delete runs inside a transaction and the
// rows-affected count decides the winner.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&models.CeremonyChallenge{}, &models.GateCredential{}); err != nil {
		return nil, err
	}
	return &Gorm{db: db}, nil
}

func (s *Gorm) SaveChallenge(ctx context.Context, challenge Challenge) error {
	if challenge.IssuedAt.IsZero() {
		challenge.IssuedAt = time.Now()
	}

	record := models.CeremonyChallenge{
		Value:       challenge.Value,
		Type:        challenge.Type,
		SessionData: string(challenge.SessionData),
		IssuedAt:    challenge.IssuedAt,
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

func (s *Gorm) ConsumeChallenge(ctx context.Context, value string) (*Challenge, error) {
	var record models.CeremonyChallenge

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("value = ?", value).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChallengeNotFound
			}
			return err
		}

		result := tx.Where("value = ?", value).Delete(&models.CeremonyChallenge{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrChallengeNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	challenge := Challenge{
		Value:       record.Value,
		Type:        record.Type,
		SessionData: []byte(record.SessionData),
		IssuedAt:    record.IssuedAt,
	}
	if challenge.expired(time.Now()) {
		return nil, ErrChallengeNotFound
	}
	return &challenge, nil
}

func (s *Gorm) SaveCredential(ctx context.Context, credential Credential) error {
	transportsJSON := ""
	if len(credential.Transports) > 0 {
		encoded, err := json.Marshal(credential.Transports)
		if err != nil {
			return err
		}
		transportsJSON = string(encoded)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.GateCredential
		err := tx.Where("credential_id = ?", credential.ID).First(&existing).Error
		switch {
		case err == nil:
			return tx.Model(&existing).Updates(map[string]interface{}{
				"public_key":       credential.PublicKey,
				"attestation_type": credential.AttestationType,
				"aaguid":           credential.AAGUID,
				"sign_count":       credential.SignCount,
				"transports":       transportsJSON,
				"last_used_at":     credential.LastUsedAt,
			}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			record := models.GateCredential{
				CredentialID:    credential.ID,
				PublicKey:       credential.PublicKey,
				AttestationType: credential.AttestationType,
				AAGUID:          credential.AAGUID,
				SignCount:       credential.SignCount,
				Transports:      transportsJSON,
				LastUsedAt:      credential.LastUsedAt,
			}
			return tx.Create(&record).Error
		default:
			return err
		}
	})
}

func (s *Gorm) GetCredential(ctx context.Context, id string) (*Credential, error) {
	var record models.GateCredential
	if err := s.db.WithContext(ctx).Where("credential_id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}

	credential := fromRecord(record)
	return &credential, nil
}

func (s *Gorm) ListCredentials(ctx context.Context) ([]Credential, error) {
	var records []models.GateCredential
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	credentials := make([]Credential, len(records))
	for i, record := range records {
		credentials[i] = fromRecord(record)
	}
	return credentials, nil
}

func fromRecord(record models.GateCredential) Credential {
	var transports []string
	if record.Transports != "" {
		json.Unmarshal([]byte(record.Transports), &transports)
	}
	return Credential{
		ID:              record.CredentialID,
		PublicKey:       record.PublicKey,
		AttestationType: record.AttestationType,
		AAGUID:          record.AAGUID,
		SignCount:       record.SignCount,
		Transports:      transports,
		CreatedAt:       record.CreatedAt,
		LastUsedAt:      record.LastUsedAt,
	}
}
