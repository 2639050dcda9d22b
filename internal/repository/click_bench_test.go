package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/clicker/internal/model"
)

func setupClickBenchDB(b *testing.B) *Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		b.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	store := NewStore(db)
	if err := store.InitSchema(); err != nil {
		b.Fatalf("migrate: %v", err)
	}
	return store
}

func BenchmarkClickWrite_WithWindowCheck(b *testing.B) {
	store := setupClickBenchDB(b)
	ctx := context.Background()

	users := make([]string, 1000)
	for i := range users {
		users[i] = fmt.Sprintf("u%04d", i)
	}
	rnd := rand.New(rand.NewSource(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		u := users[rnd.Intn(len(users))]
		now := int64(i) * 10
		if ok, _ := store.Clicks.ExistsSince(ctx, u, now-1000); ok {
			continue
		}
		_ = store.Clicks.Create(ctx, &model.Click{UserID: u, CreatedAt: now})
	}
}

func BenchmarkScanPages(b *testing.B) {
	store := setupClickBenchDB(b)
	ctx := context.Background()

	// 构造：N 条点击分布在 500 个用户上
	const N = 20000
	rows := make([]model.Click, N)
	for i := range rows {
		rows[i] = model.Click{ID: fmt.Sprintf("c%06d", i), UserID: fmt.Sprintf("u%03d", i%500), CreatedAt: int64(i)}
	}
	if err := store.DB().CreateInBatches(&rows, 1000).Error; err != nil {
		b.Fatalf("seed clicks: %v", err)
	}

	b.ResetTimer()
	b.Run("ScanUserIDs", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			for off := 0; off < N; off += 2000 {
				_, _ = store.Clicks.ScanUserIDs(ctx, off, 2000)
			}
		}
	})

	b.Run("ScanIDsByUser", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = store.Clicks.ScanIDsByUser(ctx, "u042", 0, 2000)
		}
	})

	b.Run("CountByUser", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = store.Clicks.CountByUser(ctx, "u042")
		}
	})
}
