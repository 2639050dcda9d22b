package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/clicker/internal/model"
	"github.com/d60-Lab/clicker/internal/repository"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// seedClicks 直接写入 n 条点击，时间间隔 1s
func seedClicks(t *testing.T, store *repository.Store, userID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, store.Clicks.Create(ctx, &model.Click{
			ID:        fmt.Sprintf("%s-%05d", userID, i),
			UserID:    userID,
			CreatedAt: epoch.Add(time.Duration(i) * time.Second).UnixMilli(),
		}))
	}
}

func seedItem(t *testing.T, store *repository.Store, slug, typ string, price int64, active bool) *model.AvatarItem {
	t.Helper()
	item := &model.AvatarItem{ID: "item-" + slug, Slug: slug, Label: slug, Type: typ, Price: price, IsActive: active}
	require.NoError(t, store.Items.Create(context.Background(), item))
	return item
}

type recordingNotifier struct {
	users []string
}

func (n *recordingNotifier) Refresh(userID string) { n.users = append(n.users, userID) }
