package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/clicker/internal/model"
)

type ClickRepository interface {
	Create(ctx context.Context, click *model.Click) error
	// ExistsSince 是否存在 created_at >= sinceMs 的点击
	ExistsSince(ctx context.Context, userID string, sinceMs int64) (bool, error)
	// ScanUserIDs 按 (created_at, id) 顺序分页返回每行点击的 user_id
	ScanUserIDs(ctx context.Context, offset, limit int) ([]string, error)
	// ScanIDsByUser 分页返回某用户的点击 id
	ScanIDsByUser(ctx context.Context, userID string, offset, limit int) ([]string, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

type clickRepository struct {
	db *gorm.DB
}

func NewClickRepository(db *gorm.DB) ClickRepository { return &clickRepository{db: db} }

func (r *clickRepository) Create(ctx context.Context, click *model.Click) error {
	if click.ID == "" {
		click.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(click).Error
}

func (r *clickRepository) ExistsSince(ctx context.Context, userID string, sinceMs int64) (bool, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Click{}).
		Where("user_id = ? AND created_at >= ?", userID, sinceMs).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (r *clickRepository) ScanUserIDs(ctx context.Context, offset, limit int) ([]string, error) {
	var res []string
	err := r.db.WithContext(ctx).
		Model(&model.Click{}).
		Order("created_at, id").
		Offset(offset).Limit(limit).
		Pluck("user_id", &res).Error
	return res, err
}

func (r *clickRepository) ScanIDsByUser(ctx context.Context, userID string, offset, limit int) ([]string, error) {
	var res []string
	err := r.db.WithContext(ctx).
		Model(&model.Click{}).
		Where("user_id = ?", userID).
		Order("created_at, id").
		Offset(offset).Limit(limit).
		Pluck("id", &res).Error
	return res, err
}

func (r *clickRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Click{}).Where("user_id = ?", userID).Count(&cnt).Error
	return cnt, err
}
