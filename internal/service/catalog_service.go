package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/d60-Lab/clicker/internal/model"
	"github.com/d60-Lab/clicker/internal/repository"
	"github.com/d60-Lab/clicker/pkg/logger"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ItemInput 新建目录条目
type ItemInput struct {
	Slug        string         `json:"slug" validate:"required,max=64,slug"`
	Label       string         `json:"label" validate:"required,max=128"`
	Description *string        `json:"description,omitempty"`
	Type        string         `json:"type" validate:"required,oneof=color hat accessory effect name"`
	Category    *string        `json:"category,omitempty" validate:"omitempty,max=64"`
	Rarity      *string        `json:"rarity,omitempty" validate:"omitempty,oneof=common uncommon rare epic legendary"`
	SortOrder   *int           `json:"sortOrder,omitempty"`
	Price       int64          `json:"price" validate:"gte=0"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IsActive    *bool          `json:"isActive,omitempty"`
}

// ItemPatch 部分更新；Slug 仅允许与原值相同
type ItemPatch struct {
	Slug        *string        `json:"slug,omitempty"`
	Label       *string        `json:"label,omitempty" validate:"omitempty,max=128"`
	Description *string        `json:"description,omitempty"`
	Type        *string        `json:"type,omitempty" validate:"omitempty,oneof=color hat accessory effect name"`
	Category    *string        `json:"category,omitempty" validate:"omitempty,max=64"`
	Rarity      *string        `json:"rarity,omitempty" validate:"omitempty,oneof=common uncommon rare epic legendary"`
	SortOrder   *int           `json:"sortOrder,omitempty"`
	Price       *int64         `json:"price,omitempty" validate:"omitempty,gte=0"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IsActive    *bool          `json:"isActive,omitempty"`
}

// CatalogService 目录管理（管理员）与商店列表
type CatalogService interface {
	CreateItem(ctx context.Context, in ItemInput) (*model.AvatarItem, error)
	UpdateItem(ctx context.Context, id string, patch ItemPatch) (*model.AvatarItem, error)
	DeactivateItem(ctx context.Context, id string) (*model.AvatarItem, error)
	ListShop(ctx context.Context) ([]*model.AvatarItem, error)
	ListAll(ctx context.Context) ([]*model.AvatarItem, error)
	SeedDefaults(ctx context.Context) (int, error)
}

type catalogService struct {
	store    *repository.Store
	validate *validator.Validate
}

func NewCatalogService(store *repository.Store) CatalogService {
	v := validator.New()
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return &catalogService{store: store, validate: v}
}

func (s *catalogService) CreateItem(ctx context.Context, in ItemInput) (*model.AvatarItem, error) {
	in.Slug = strings.TrimSpace(in.Slug)
	if err := s.check(in); err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	item := &model.AvatarItem{
		ID:          uuid.New().String(),
		Slug:        in.Slug,
		Label:       in.Label,
		Description: in.Description,
		Type:        in.Type,
		Category:    in.Category,
		Rarity:      in.Rarity,
		SortOrder:   in.SortOrder,
		Price:       in.Price,
		IsActive:    active,
	}
	if in.Metadata != nil {
		item.Metadata = datatypes.JSONMap(in.Metadata)
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Items.GetBySlug(ctx, item.Slug); err == nil {
			return ErrSlugTaken
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return tx.Items.Create(ctx, item)
	})
	if err != nil {
		return nil, domainOrStoreErr(err)
	}
	logger.Info("catalog item created", zap.String("slug", item.Slug), zap.Int64("price", item.Price))
	return item, nil
}

func (s *catalogService) UpdateItem(ctx context.Context, id string, patch ItemPatch) (*model.AvatarItem, error) {
	if err := s.check(patch); err != nil {
		return nil, err
	}

	var item *model.AvatarItem
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		cur, err := tx.Items.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		if patch.Slug != nil && *patch.Slug != cur.Slug {
			return ErrSlugImmutable
		}

		fields := patchFields(patch)
		if len(fields) > 0 {
			if err := tx.Items.Update(ctx, id, fields); err != nil {
				return err
			}
		}
		item, err = tx.Items.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, domainOrStoreErr(err)
	}
	return item, nil
}

// DeactivateItem 软删除：历史购买仍需解析该条目
func (s *catalogService) DeactivateItem(ctx context.Context, id string) (*model.AvatarItem, error) {
	inactive := false
	item, err := s.UpdateItem(ctx, id, ItemPatch{IsActive: &inactive})
	if err != nil {
		return nil, err
	}
	logger.Info("catalog item deactivated", zap.String("slug", item.Slug))
	return item, nil
}

func (s *catalogService) ListShop(ctx context.Context) ([]*model.AvatarItem, error) {
	items, err := s.store.Items.ListActive(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

func (s *catalogService) ListAll(ctx context.Context) ([]*model.AvatarItem, error) {
	items, err := s.store.Items.ListAll(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

// SeedDefaults 目录为空时写入默认条目
func (s *catalogService) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.store.Items.Count(ctx)
	if err != nil {
		return 0, storeErr(err)
	}
	if n > 0 {
		return 0, nil
	}
	created := 0
	for _, in := range DefaultCatalog() {
		if _, err := s.CreateItem(ctx, in); err != nil {
			return created, err
		}
		created++
	}
	logger.Info("catalog seeded", zap.Int("items", created))
	return created, nil
}

func (s *catalogService) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{Field: verrs[0].Field(), Reason: "failed " + verrs[0].Tag()}
	}
	return &ValidationError{Field: "item", Reason: err.Error()}
}

func patchFields(p ItemPatch) map[string]any {
	fields := map[string]any{}
	if p.Label != nil {
		fields["label"] = *p.Label
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Type != nil {
		fields["type"] = *p.Type
	}
	if p.Category != nil {
		fields["category"] = *p.Category
	}
	if p.Rarity != nil {
		fields["rarity"] = *p.Rarity
	}
	if p.SortOrder != nil {
		fields["sort_order"] = *p.SortOrder
	}
	if p.Price != nil {
		fields["price"] = *p.Price
	}
	if p.Metadata != nil {
		fields["metadata"] = datatypes.JSONMap(p.Metadata)
	}
	if p.IsActive != nil {
		fields["is_active"] = *p.IsActive
	}
	return fields
}
