package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/intervyu/internal/models"
	"github.com/yoockh/intervyu/internal/utils"
	"gorm.io/gorm"
)

type CallLogRepository interface {
	Create(ctx context.Context, l *models.CallLog) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.CallLog, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.CallLog, error)
}

type callLogRepo struct {
	db *gorm.DB
}

func NewCallLogRepo(db *gorm.DB) CallLogRepository {
	return &callLogRepo{db: db}
}

func (r *callLogRepo) Create(ctx context.Context, l *models.CallLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *callLogRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.CallLog, error) {
	var l models.CallLog
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Take(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *callLogRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.CallLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.CallLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
