package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/clicker/internal/model"
)

type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*model.DisplayName, error)
	// CreateIfAbsent 已存在同 user_id 时不写入，返回是否新建
	CreateIfAbsent(ctx context.Context, p *model.DisplayName) (bool, error)
	UpdateFields(ctx context.Context, userID string, fields map[string]any) error
	ListByUserIDs(ctx context.Context, userIDs []string) ([]*model.DisplayName, error)
}

type profileRepository struct{ db *gorm.DB }

func NewProfileRepository(db *gorm.DB) ProfileRepository { return &profileRepository{db: db} }

func (r *profileRepository) GetByUserID(ctx context.Context, userID string) (*model.DisplayName, error) {
	var p model.DisplayName
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *profileRepository) CreateIfAbsent(ctx context.Context, p *model.DisplayName) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *profileRepository) UpdateFields(ctx context.Context, userID string, fields map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&model.DisplayName{}).
		Where("user_id = ?", userID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepository) ListByUserIDs(ctx context.Context, userIDs []string) ([]*model.DisplayName, error) {
	var res []*model.DisplayName
	if len(userIDs) == 0 {
		return res, nil
	}
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&res).Error
	return res, err
}
