package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/clicker/internal/model"
	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/internal/testutil"
	"github.com/d60-Lab/clicker/pkg/cache"
)

func TestTotalClicks_Truncation(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	stats := service.NewStatsService(store, nil, service.StatsOptions{PageSize: 3, ScanCap: 5})

	seedClicks(t, store, "a", 5)
	snap, err := stats.TotalClicks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, snap.Total)
	assert.Equal(t, 5, snap.ScannedRows)
	assert.False(t, snap.Truncated)

	seedClicks(t, store, "b", 2)
	snap, err = stats.TotalClicks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, snap.Total)
	assert.True(t, snap.Truncated)

	user, err := stats.UserClickCount(ctx, "b")
	require.NoError(t, err)
	assert.EqualValues(t, 2, user.ClickCount)
	assert.False(t, user.Truncated)
}

func TestLeaderboard_OrderAndTieBreak(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	stats := service.NewStatsService(store, nil, service.StatsOptions{PageSize: 4})

	seedClicks(t, store, "B", 10)
	seedClicks(t, store, "A", 10)
	seedClicks(t, store, "C", 5)
	seedClicks(t, store, "D", 1)
	color := "#ff0000"
	_, err := store.Profiles.CreateIfAbsent(ctx, &model.DisplayName{ID: "p-a", UserID: "A", DisplayName: "Ace", CursorColor: &color})
	require.NoError(t, err)

	board, err := stats.Leaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, board.Entries, 3)
	assert.Equal(t, "A", board.Entries[0].UserID)
	assert.Equal(t, "B", board.Entries[1].UserID)
	assert.Equal(t, "C", board.Entries[2].UserID)
	assert.EqualValues(t, 26, board.TotalClicks)

	assert.Equal(t, "Ace", board.Entries[0].DisplayName)
	assert.Equal(t, &color, board.Entries[0].CursorColor)
	assert.Equal(t, "Anonymous", board.Entries[1].DisplayName)

	var sum int64
	for _, e := range board.Entries {
		sum += e.Count
	}
	assert.LessOrEqual(t, sum, board.TotalClicks)
}

func TestLeaderboard_LimitClamped(t *testing.T) {
	store := testutil.NewStore(t)
	stats := service.NewStatsService(store, nil, service.StatsOptions{LeaderboardMax: 2})
	seedClicks(t, store, "x", 1)
	seedClicks(t, store, "y", 2)
	seedClicks(t, store, "z", 3)

	for _, limit := range []int{0, -1, 50} {
		board, err := stats.Leaderboard(context.Background(), limit)
		require.NoError(t, err)
		assert.Len(t, board.Entries, 2)
		assert.Equal(t, "z", board.Entries[0].UserID)
	}
}

func TestRankCounts(t *testing.T) {
	entries := service.RankCounts(map[string]int64{"A": 10, "B": 10, "C": 5, "D": 1}, 3)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)
	assert.Empty(t, service.RankCounts(nil, 10))
}

func TestStats_SnapshotsCachedUntilTTL(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	clock := testutil.NewClock(epoch)
	mem, err := cache.NewMemory(16, clock.Now)
	require.NoError(t, err)
	stats := service.NewStatsService(store, cache.NewLoader(mem), service.StatsOptions{
		TotalTTL: 3 * time.Second,
		UserTTL:  3 * time.Second,
		Now:      clock.Now,
	})

	seedClicks(t, store, "a", 2)
	first, err := stats.TotalClicks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, first.Total)
	assert.Equal(t, epoch.UnixMilli(), first.GeneratedAt)

	seedClicks(t, store, "b", 1)
	clock.Advance(2 * time.Second)
	again, err := stats.TotalClicks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, again.Total)
	assert.Equal(t, first.GeneratedAt, again.GeneratedAt)

	clock.Advance(time.Second)
	fresh, err := stats.TotalClicks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, fresh.Total)
	assert.Greater(t, fresh.GeneratedAt, first.GeneratedAt)
}

func TestStats_CacheKeysIncludeParameters(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	clock := testutil.NewClock(epoch)
	mem, err := cache.NewMemory(16, clock.Now)
	require.NoError(t, err)
	stats := service.NewStatsService(store, cache.NewLoader(mem), service.StatsOptions{
		TotalTTL:       3 * time.Second,
		UserTTL:        3 * time.Second,
		LeaderboardTTL: 8 * time.Second,
		Now:            clock.Now,
	})

	seedClicks(t, store, "a", 3)
	seedClicks(t, store, "b", 2)
	seedClicks(t, store, "c", 1)

	top1, err := stats.Leaderboard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top1.Entries, 1)
	assert.Equal(t, "a", top1.Entries[0].UserID)

	top3, err := stats.Leaderboard(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, top3.Entries, 3)

	ua, err := stats.UserClickCount(ctx, "a")
	require.NoError(t, err)
	ub, err := stats.UserClickCount(ctx, "b")
	require.NoError(t, err)
	assert.EqualValues(t, 3, ua.ClickCount)
	assert.EqualValues(t, 2, ub.ClickCount)
	assert.Equal(t, "b", ub.UserID)

	// 排行榜 TTL 长于汇总 TTL
	seedClicks(t, store, "d", 4)
	clock.Advance(3 * time.Second)
	total, err := stats.TotalClicks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, total.Total)

	ud, err := stats.UserClickCount(ctx, "d")
	require.NoError(t, err)
	assert.EqualValues(t, 4, ud.ClickCount)

	board, err := stats.Leaderboard(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 6, board.TotalClicks)
	assert.Equal(t, "a", board.Entries[0].UserID)
	assert.Equal(t, top3.GeneratedAt, board.GeneratedAt)

	clock.Advance(5 * time.Second)
	board, err = stats.Leaderboard(ctx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 10, board.TotalClicks)
	assert.Equal(t, "d", board.Entries[0].UserID)
}

func TestUserClickCount_NormalizesPrefix(t *testing.T) {
	store := testutil.NewStore(t)
	stats := service.NewStatsService(store, nil, service.StatsOptions{})
	seedClicks(t, store, "user_42", 4)

	snap, err := stats.UserClickCount(context.Background(), "oauth2|github|user_42")
	require.NoError(t, err)
	assert.Equal(t, "user_42", snap.UserID)
	assert.EqualValues(t, 4, snap.ClickCount)

	_, err = stats.UserClickCount(context.Background(), "")
	var ve *service.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestStats_StoreFailure(t *testing.T) {
	store := testutil.NewStore(t)
	stats := service.NewStatsService(store, nil, service.StatsOptions{})
	sqlDB, err := store.DB().DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = stats.TotalClicks(context.Background())
	assert.ErrorIs(t, err, service.ErrAggregationUnavailable)
}
