package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/clicker/internal/model"
)

type PurchaseRepository interface {
	Create(ctx context.Context, p *model.AvatarPurchase) error
	ListByUser(ctx context.Context, userID string) ([]*model.AvatarPurchase, error)
	SumByUser(ctx context.Context, userID string) (int64, error)
	Owns(ctx context.Context, userID, slug string) (bool, error)
}

type purchaseRepository struct{ db *gorm.DB }

func NewPurchaseRepository(db *gorm.DB) PurchaseRepository { return &purchaseRepository{db: db} }

func (r *purchaseRepository) Create(ctx context.Context, p *model.AvatarPurchase) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *purchaseRepository) ListByUser(ctx context.Context, userID string) ([]*model.AvatarPurchase, error) {
	var res []*model.AvatarPurchase
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("purchased_at, id").Find(&res).Error
	return res, err
}

func (r *purchaseRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.AvatarPurchase{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *purchaseRepository) Owns(ctx context.Context, userID, slug string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.AvatarPurchase{}).
		Where("user_id = ? AND item_slug = ?", userID, slug).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}
