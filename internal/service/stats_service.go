package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/d60-Lab/clicker/config"
	"github.com/d60-Lab/clicker/internal/model"
	"github.com/d60-Lab/clicker/internal/repository"
	"github.com/d60-Lab/clicker/pkg/cache"
)

// TotalClicksSnapshot 全站点击数快照；Truncated 时 Total 为下界
type TotalClicksSnapshot struct {
	Total       int64 `json:"total"`
	GeneratedAt int64 `json:"generatedAt"`
	ScannedRows int   `json:"scannedRows"`
	Truncated   bool  `json:"truncated"`
}

type UserClickCountSnapshot struct {
	UserID      string `json:"userId"`
	ClickCount  int64  `json:"clickCount"`
	GeneratedAt int64  `json:"generatedAt"`
	ScannedRows int    `json:"scannedRows"`
	Truncated   bool   `json:"truncated"`
}

type LeaderboardEntry struct {
	UserID          string  `json:"userId"`
	Count           int64   `json:"count"`
	DisplayName     string  `json:"displayName"`
	CursorColor     *string `json:"cursorColor,omitempty"`
	HatSlug         *string `json:"hatSlug,omitempty"`
	AccessorySlug   *string `json:"accessorySlug,omitempty"`
	EffectSlug      *string `json:"effectSlug,omitempty"`
	ProfileImageURL *string `json:"profileImageUrl,omitempty"`
}

type LeaderboardSnapshot struct {
	TotalClicks int64              `json:"totalClicks"`
	GeneratedAt int64              `json:"generatedAt"`
	ScannedRows int                `json:"scannedRows"`
	Truncated   bool               `json:"truncated"`
	Entries     []LeaderboardEntry `json:"entries"`
}

// StatsService 聚合读：按页扫描点击流水，扫描上限截断，结果按 TTL 缓存
type StatsService interface {
	TotalClicks(ctx context.Context) (*TotalClicksSnapshot, error)
	UserClickCount(ctx context.Context, userID string) (*UserClickCountSnapshot, error)
	Leaderboard(ctx context.Context, limit int) (*LeaderboardSnapshot, error)
}

type StatsOptions struct {
	PageSize         int
	ScanCap          int
	LeaderboardMax   int
	ProfileChunkSize int
	// TTL <= 0 表示不缓存
	TotalTTL       time.Duration
	UserTTL        time.Duration
	LeaderboardTTL time.Duration
	Now            func() time.Time
}

func StatsOptionsFromConfig(c config.StatsConfig) StatsOptions {
	return StatsOptions{
		PageSize:         c.PageSize,
		ScanCap:          c.ScanCap,
		LeaderboardMax:   c.LeaderboardMax,
		ProfileChunkSize: c.ProfileChunkSize,
		TotalTTL:         c.TotalTTL,
		UserTTL:          c.UserTTL,
		LeaderboardTTL:   c.LeaderboardTTL,
	}
}

type statsService struct {
	store  *repository.Store
	loader *cache.Loader
	opts   StatsOptions
}

func NewStatsService(store *repository.Store, loader *cache.Loader, opts StatsOptions) StatsService {
	if opts.PageSize <= 0 {
		opts.PageSize = 2000
	}
	if opts.ScanCap <= 0 {
		opts.ScanCap = 300000
	}
	if opts.LeaderboardMax <= 0 {
		opts.LeaderboardMax = 100
	}
	if opts.ProfileChunkSize <= 0 {
		opts.ProfileChunkSize = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &statsService{store: store, loader: loader, opts: opts}
}

func (s *statsService) TotalClicks(ctx context.Context) (*TotalClicksSnapshot, error) {
	return cached(ctx, s, "total", s.opts.TotalTTL, s.computeTotal)
}

func (s *statsService) UserClickCount(ctx context.Context, userID string) (*UserClickCountSnapshot, error) {
	userID = NormalizeUserID(userID)
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "required"}
	}
	return cached(ctx, s, "user:"+userID, s.opts.UserTTL, func(ctx context.Context) (*UserClickCountSnapshot, error) {
		return s.computeUser(ctx, userID)
	})
}

func (s *statsService) Leaderboard(ctx context.Context, limit int) (*LeaderboardSnapshot, error) {
	if limit <= 0 || limit > s.opts.LeaderboardMax {
		limit = s.opts.LeaderboardMax
	}
	return cached(ctx, s, "leaderboard:"+strconv.Itoa(limit), s.opts.LeaderboardTTL, func(ctx context.Context) (*LeaderboardSnapshot, error) {
		return s.computeLeaderboard(ctx, limit)
	})
}

func cached[T any](ctx context.Context, s *statsService, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if s.loader == nil || ttl <= 0 {
		return load(ctx)
	}
	return cache.Fetch(ctx, s.loader, key, ttl, load)
}

func (s *statsService) computeTotal(ctx context.Context) (*TotalClicksSnapshot, error) {
	scanned, truncated, err := s.scan(ctx, "total", s.store.Clicks.ScanUserIDs, nil)
	if err != nil {
		return nil, err
	}
	return &TotalClicksSnapshot{
		Total:       int64(scanned),
		GeneratedAt: s.opts.Now().UnixMilli(),
		ScannedRows: scanned,
		Truncated:   truncated,
	}, nil
}

func (s *statsService) computeUser(ctx context.Context, userID string) (*UserClickCountSnapshot, error) {
	page := func(ctx context.Context, offset, limit int) ([]string, error) {
		return s.store.Clicks.ScanIDsByUser(ctx, userID, offset, limit)
	}
	scanned, truncated, err := s.scan(ctx, "user", page, nil)
	if err != nil {
		return nil, err
	}
	return &UserClickCountSnapshot{
		UserID:      userID,
		ClickCount:  int64(scanned),
		GeneratedAt: s.opts.Now().UnixMilli(),
		ScannedRows: scanned,
		Truncated:   truncated,
	}, nil
}

func (s *statsService) computeLeaderboard(ctx context.Context, limit int) (*LeaderboardSnapshot, error) {
	counts := make(map[string]int64)
	scanned, truncated, err := s.scan(ctx, "leaderboard", s.store.Clicks.ScanUserIDs, func(userIDs []string) {
		for _, id := range userIDs {
			counts[id]++
		}
	})
	if err != nil {
		return nil, err
	}

	entries := RankCounts(counts, limit)
	if err := s.resolveProfiles(ctx, entries); err != nil {
		return nil, err
	}

	return &LeaderboardSnapshot{
		TotalClicks: int64(scanned),
		GeneratedAt: s.opts.Now().UnixMilli(),
		ScannedRows: scanned,
		Truncated:   truncated,
		Entries:     entries,
	}, nil
}

// RankCounts 按次数降序、user_id 升序排序并截取前 limit 个
func RankCounts(counts map[string]int64, limit int) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(counts))
	for id, n := range counts {
		entries = append(entries, LeaderboardEntry{UserID: id, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// resolveProfiles 只为入榜用户分批查询资料，成本与流水规模无关
func (s *statsService) resolveProfiles(ctx context.Context, entries []LeaderboardEntry) error {
	byUser := make(map[string]*model.DisplayName, len(entries))
	for start := 0; start < len(entries); start += s.opts.ProfileChunkSize {
		end := start + s.opts.ProfileChunkSize
		if end > len(entries) {
			end = len(entries)
		}
		ids := make([]string, 0, end-start)
		for _, e := range entries[start:end] {
			ids = append(ids, e.UserID)
		}
		profiles, err := s.store.Profiles.ListByUserIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAggregationUnavailable, err)
		}
		for _, p := range profiles {
			byUser[p.UserID] = p
		}
	}

	for i := range entries {
		p, ok := byUser[entries[i].UserID]
		if !ok {
			entries[i].DisplayName = anonymousName
			continue
		}
		entries[i].DisplayName = p.DisplayName
		entries[i].CursorColor = p.CursorColor
		entries[i].HatSlug = p.HatSlug
		entries[i].AccessorySlug = p.AccessorySlug
		entries[i].EffectSlug = p.EffectSlug
		entries[i].ProfileImageURL = p.ProfileImageURL
	}
	return nil
}

type pageFunc func(ctx context.Context, offset, limit int) ([]string, error)

// scan 按页读取直到读完或达到 ScanCap。达到上限时再探测一行判断是否截断；
// 任一页失败则整体失败，不返回部分计数
func (s *statsService) scan(ctx context.Context, op string, page pageFunc, visit func([]string)) (int, bool, error) {
	ctx, span := otel.Tracer("github.com/d60-Lab/clicker/internal/service").Start(ctx, "stats.scan."+op)
	defer span.End()

	scanned := 0
	for scanned < s.opts.ScanCap {
		limit := s.opts.PageSize
		if rest := s.opts.ScanCap - scanned; rest < limit {
			limit = rest
		}
		rows, err := page(ctx, scanned, limit)
		if err != nil {
			span.RecordError(err)
			return 0, false, fmt.Errorf("%w: %v", ErrAggregationUnavailable, err)
		}
		if visit != nil {
			visit(rows)
		}
		scanned += len(rows)
		if len(rows) < limit {
			s.observe(span, op, scanned, false)
			return scanned, false, nil
		}
	}

	more, err := page(ctx, scanned, 1)
	if err != nil {
		span.RecordError(err)
		return 0, false, fmt.Errorf("%w: %v", ErrAggregationUnavailable, err)
	}
	truncated := len(more) > 0
	s.observe(span, op, scanned, truncated)
	return scanned, truncated, nil
}

func (s *statsService) observe(span trace.Span, op string, scanned int, truncated bool) {
	scanRows.WithLabelValues(op).Observe(float64(scanned))
	span.SetAttributes(attribute.Int("scan.rows", scanned), attribute.Bool("scan.truncated", truncated))
}
