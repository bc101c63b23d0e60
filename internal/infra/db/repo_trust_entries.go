package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"sigil/internal/domain"
)

type TrustEntryRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTrustEntryRepository(db *gorm.DB) *TrustEntryRepository {
	return &TrustEntryRepository{db: db, now: time.Now}
}

func (r *TrustEntryRepository) Register(ctx context.Context, entry domain.TrustEntry) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if entry.KeyID == "" {
		return errors.New("key id is required")
	}
	if entry.TrustLevel == "" {
		entry.TrustLevel = domain.TrustMedium
	}
	registeredAt := entry.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = r.now().UTC()
	}
	model := TrustEntryModel{
		KeyID:        entry.KeyID,
		Alg:          string(entry.Alg),
		PublicKey:    copyBytes(entry.PublicKey),
		TrustLevel:   string(entry.TrustLevel),
		RegisteredAt: registeredAt,
	}
	err := r.db.WithContext(ctx).Create(&model).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, entry.KeyID)
	}
	return err
}

func (r *TrustEntryRepository) Revoke(ctx context.Context, keyID, reason string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	revokedAt := r.now().UTC()
	result := r.db.WithContext(ctx).
		Model(&TrustEntryModel{}).
		Where("key_id = ?", keyID).
		Updates(map[string]any{
			"revoked":           true,
			"revoked_at":        revokedAt,
			"revocation_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, keyID)
	}
	return nil
}

func (r *TrustEntryRepository) Lookup(ctx context.Context, keyID string) (*domain.TrustEntry, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model TrustEntryModel
	err := r.db.WithContext(ctx).
		Where("key_id = ?", keyID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrKeyNotFound, keyID)
		}
		return nil, err
	}
	return trustEntryFromModel(model), nil
}

func (r *TrustEntryRepository) TrustLevelOf(ctx context.Context, keyID string) (domain.TrustLevel, error) {
	entry, err := r.Lookup(ctx, keyID)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return domain.TrustNone, nil
		}
		return domain.TrustNone, err
	}
	if entry.Revoked {
		return domain.TrustNone, nil
	}
	return entry.TrustLevel, nil
}

func trustEntryFromModel(model TrustEntryModel) *domain.TrustEntry {
	return &domain.TrustEntry{
		KeyID:            model.KeyID,
		Alg:              domain.Algorithm(model.Alg),
		PublicKey:        copyBytes(model.PublicKey),
		TrustLevel:       domain.TrustLevel(model.TrustLevel),
		Revoked:          model.Revoked,
		RevokedAt:        model.RevokedAt,
		RevocationReason: model.RevocationReason,
		RegisteredAt:     model.RegisteredAt,
	}
}

var _ domain.TrustSource = (*TrustEntryRepository)(nil)
