package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/clicker/internal/model"
)

// ItemRepository 商店目录仓储
type ItemRepository interface {
	Create(ctx context.Context, item *model.AvatarItem) error
	// Update 更新字段；slug 不可变，调用方不得传入
	Update(ctx context.Context, id string, fields map[string]any) error
	GetByID(ctx context.Context, id string) (*model.AvatarItem, error)
	GetBySlug(ctx context.Context, slug string) (*model.AvatarItem, error)
	ListActive(ctx context.Context) ([]*model.AvatarItem, error)
	ListAll(ctx context.Context) ([]*model.AvatarItem, error)
	ListBySlugs(ctx context.Context, slugs []string) ([]*model.AvatarItem, error)
	Count(ctx context.Context) (int64, error)
}

type itemRepository struct{ db *gorm.DB }

func NewItemRepository(db *gorm.DB) ItemRepository { return &itemRepository{db: db} }

func (r *itemRepository) Create(ctx context.Context, item *model.AvatarItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *itemRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.AvatarItem{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (*model.AvatarItem, error) {
	var item model.AvatarItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (r *itemRepository) GetBySlug(ctx context.Context, slug string) (*model.AvatarItem, error) {
	var item model.AvatarItem
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (r *itemRepository) ListActive(ctx context.Context) ([]*model.AvatarItem, error) {
	var res []*model.AvatarItem
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order, created_at, slug").
		Find(&res).Error
	return res, err
}

func (r *itemRepository) ListAll(ctx context.Context) ([]*model.AvatarItem, error) {
	var res []*model.AvatarItem
	err := r.db.WithContext(ctx).Order("sort_order, created_at, slug").Find(&res).Error
	return res, err
}

func (r *itemRepository) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.AvatarItem{}).Count(&cnt).Error
	return cnt, err
}

// ListBySlugs 按 slug 批量查询（含已下架条目）
func (r *itemRepository) ListBySlugs(ctx context.Context, slugs []string) ([]*model.AvatarItem, error) {
	var res []*model.AvatarItem
	if len(slugs) == 0 {
		return res, nil
	}
	err := r.db.WithContext(ctx).Where("slug IN ?", slugs).Find(&res).Error
	return res, err
}
