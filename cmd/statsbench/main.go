package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/clicker/internal/model"
	"github.com/d60-Lab/clicker/internal/repository"
	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/pkg/cache"
)

// countingClicks 统计聚合扫描实际打到数据库的分页查询数
type countingClicks struct {
	repository.ClickRepository
	pages int64
}

func (c *countingClicks) ScanUserIDs(ctx context.Context, offset, limit int) ([]string, error) {
	atomic.AddInt64(&c.pages, 1)
	return c.ClickRepository.ScanUserIDs(ctx, offset, limit)
}

func (c *countingClicks) ScanIDsByUser(ctx context.Context, userID string, offset, limit int) ([]string, error) {
	atomic.AddInt64(&c.pages, 1)
	return c.ClickRepository.ScanIDsByUser(ctx, userID, offset, limit)
}

type scenarioResult struct {
	durations   []time.Duration
	pages       int64
	cacheKeys   int
	memoryBytes int64
}

func main() {
	ctx := context.Background()

	const (
		userCount  = 2000
		clickCount = 120000
		bursts     = 30
		burstSize  = 200
	)

	db := openDB()
	mustDo(db.Exec("DROP TABLE IF EXISTS clicks").Error)
	mustDo(db.Exec("DROP TABLE IF EXISTS display_names").Error)
	store := repository.NewStore(db)
	mustDo(store.InitSchema())

	fmt.Println("Setting up test data...")
	users := make([]string, userCount)
	profiles := make([]model.DisplayName, userCount)
	for i := range users {
		users[i] = fmt.Sprintf("user_%04d", i)
		profiles[i] = model.DisplayName{ID: uuid.NewString(), UserID: users[i], DisplayName: users[i]}
	}
	mustDo(db.CreateInBatches(&profiles, 500).Error)

	// 少数用户贡献大部分点击
	rnd := rand.New(rand.NewSource(42))
	base := time.Now().Add(-24 * time.Hour).UnixMilli()
	clicks := make([]model.Click, clickCount)
	for i := range clicks {
		u := int(math.Pow(rnd.Float64(), 3) * userCount)
		clicks[i] = model.Click{ID: uuid.NewString(), UserID: users[u], CreatedAt: base + int64(i)*50}
	}
	mustDo(db.CreateInBatches(&clicks, 1000).Error)
	fmt.Printf("Test data ready: %d users, %d clicks\n", userCount, clickCount)

	counting := &countingClicks{ClickRepository: store.Clicks}
	store.Clicks = counting
	opts := service.StatsOptions{TotalTTL: 3 * time.Second, UserTTL: 3 * time.Second, LeaderboardTTL: 8 * time.Second}

	noCacheOpts := opts
	noCacheOpts.TotalTTL, noCacheOpts.UserTTL, noCacheOpts.LeaderboardTTL = 0, 0, 0
	noCache := runScenario(ctx, service.NewStatsService(store, nil, noCacheOpts), counting, bursts/10, burstSize, nil)

	mem := must(cache.NewMemory(4096, time.Now))
	memory := runScenario(ctx, service.NewStatsService(store, cache.NewLoader(mem), opts), counting, bursts, burstSize, nil)

	var shared *scenarioResult
	if client := redisClient(ctx); client != nil {
		defer client.Close()
		client.FlushAll(ctx)
		svc := service.NewStatsService(store, cache.NewLoader(cache.NewRedis(client, "bench:")), opts)
		r := runScenario(ctx, svc, counting, bursts, burstSize, client)
		shared = &r
	}

	fmt.Printf("\nAggregate read latency (%d clicks, bursts of %d concurrent readers)\n", clickCount, burstSize)
	report("No cache", noCache)
	report("Memory LRU", memory)
	if shared != nil {
		report("Redis", *shared)
	}
}

func report(name string, r scenarioResult) {
	fmt.Printf("%-12s reads=%d avg=%v p95=%v p99=%v scan_pages=%d cache_keys=%d mem=%s\n",
		name, len(r.durations), avg(r.durations), pct(r.durations, 0.95), pct(r.durations, 0.99),
		r.pages, r.cacheKeys, formatBytes(r.memoryBytes))
}

// runScenario 每轮并发读取 summary / leaderboard / 随机用户计数
func runScenario(ctx context.Context, svc service.StatsService, counting *countingClicks, bursts, size int, client *redis.Client) scenarioResult {
	atomic.StoreInt64(&counting.pages, 0)
	rnd := rand.New(rand.NewSource(7))

	var mu sync.Mutex
	out := make([]time.Duration, 0, bursts*size)
	for b := 0; b < bursts; b++ {
		var wg sync.WaitGroup
		for i := 0; i < size; i++ {
			kind := rnd.Intn(3)
			user := fmt.Sprintf("user_%04d", rnd.Intn(20))
			wg.Add(1)
			go func() {
				defer wg.Done()
				start := time.Now()
				var err error
				switch kind {
				case 0:
					_, err = svc.TotalClicks(ctx)
				case 1:
					_, err = svc.Leaderboard(ctx, 100)
				default:
					_, err = svc.UserClickCount(ctx, user)
				}
				if err != nil {
					panic(err)
				}
				d := time.Since(start)
				mu.Lock()
				out = append(out, d)
				mu.Unlock()
			}()
		}
		wg.Wait()
		time.Sleep(100 * time.Millisecond)
	}

	res := scenarioResult{durations: out, pages: atomic.LoadInt64(&counting.pages)}
	if client != nil {
		keys, _ := client.Keys(ctx, "bench:*").Result()
		res.cacheKeys = len(keys)
		if info, err := client.Info(ctx, "memory").Result(); err == nil {
			res.memoryBytes = parseRedisMemory(info)
		}
	}
	return res
}

func openDB() *gorm.DB {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return must(gorm.Open(postgres.Open(dsn), &gorm.Config{}))
	}
	return must(gorm.Open(sqlite.Open("statsbench.db"), &gorm.Config{}))
}

func redisClient(ctx context.Context) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis at %s: %v", addr, err))
	}
	return client
}

// parseRedisMemory 取 INFO memory 中的 used_memory
func parseRedisMemory(info string) int64 {
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "used_memory:"); ok {
			n, _ := strconv.ParseInt(v, 10, 64)
			return n
		}
	}
	return 0
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
