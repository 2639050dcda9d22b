package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/d60-Lab/clicker/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Store 聚合各仓储；Transaction 内的仓储共享同一个 tx
type Store struct {
	db        *gorm.DB
	Clicks    ClickRepository
	Profiles  ProfileRepository
	Items     ItemRepository
	Purchases PurchaseRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Clicks:    NewClickRepository(db),
		Profiles:  NewProfileRepository(db),
		Items:     NewItemRepository(db),
		Purchases: NewPurchaseRepository(db),
	}
}

// Transaction 在一个数据库事务中执行 fn；fn 返回错误即回滚
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// DB 暴露底层连接（健康检查用）
func (s *Store) DB() *gorm.DB { return s.db }

// Ping 检查数据库可达
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// InitSchema 初始化表结构
func (s *Store) InitSchema() error {
	if err := s.db.AutoMigrate(&model.Click{}, &model.DisplayName{}, &model.AvatarItem{}, &model.AvatarPurchase{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
