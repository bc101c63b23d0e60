package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"sigil/internal/domain"
	"sigil/internal/infra/execstore"
)

type ExecutionRepository struct {
	db        *gorm.DB
	retention int
	now       func() time.Time
}

// NewExecutionRepository keeps at most retention rows; oldest rows beyond
// that are pruned after each insert.
func NewExecutionRepository(db *gorm.DB, retention int) *ExecutionRepository {
	if retention <= 0 {
		retention = 100
	}
	return &ExecutionRepository{db: db, retention: retention, now: time.Now}
}

func (r *ExecutionRepository) Record(ctx context.Context, exec domain.SignedExecution) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if exec.ToolID == "" {
		return errors.New("tool id is required")
	}
	model := ExecutionModel{
		ExecutionID: exec.ExecutionID,
		ToolID:      exec.ToolID,
		Input:       copyBytes(exec.Input),
		Output:      copyBytes(exec.Output),
		Signature:   exec.Signature,
		KeyID:       exec.KeyID,
		Alg:         string(exec.Alg),
		Nonce:       exec.Nonce,
		SignedAt:    exec.SignedAt,
		TrustLevel:  string(exec.TrustLevel),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	return r.prune(ctx)
}

func (r *ExecutionRepository) prune(ctx context.Context) error {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&ExecutionModel{}).
		Order("signed_at DESC").
		Offset(r.retention).
		Pluck("execution_id", &ids).Error
	if err != nil || len(ids) == 0 {
		return err
	}
	return r.db.WithContext(ctx).
		Where("execution_id IN ?", ids).
		Delete(&ExecutionModel{}).Error
}

func (r *ExecutionRepository) Recent(ctx context.Context, toolID string, within time.Duration) ([]domain.SignedExecution, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	q := r.db.WithContext(ctx).Model(&ExecutionModel{})
	if within > 0 {
		q = q.Where("signed_at >= ?", r.now().Add(-within))
	}
	if toolID != "" {
		q = q.Where("tool_id = ?", toolID)
	}
	var models []ExecutionModel
	if err := q.Order("signed_at DESC").Limit(r.retention).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.SignedExecution, 0, len(models))
	for _, model := range models {
		out = append(out, executionFromModel(model))
	}
	return out, nil
}

func (r *ExecutionRepository) Stats(ctx context.Context) (execstore.Stats, error) {
	if r.db == nil {
		return execstore.Stats{}, errDBUnavailable
	}
	var held int64
	if err := r.db.WithContext(ctx).Model(&ExecutionModel{}).Count(&held).Error; err != nil {
		return execstore.Stats{}, err
	}
	return execstore.Stats{Held: int(held)}, nil
}

func executionFromModel(model ExecutionModel) domain.SignedExecution {
	return domain.SignedExecution{
		ExecutionID: model.ExecutionID,
		ToolID:      model.ToolID,
		Input:       copyBytes(model.Input),
		Output:      copyBytes(model.Output),
		Signature:   model.Signature,
		KeyID:       model.KeyID,
		Alg:         domain.Algorithm(model.Alg),
		Nonce:       model.Nonce,
		SignedAt:    model.SignedAt,
		TrustLevel:  domain.TrustLevel(model.TrustLevel),
	}
}
