package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/clicker/config"
	"github.com/d60-Lab/clicker/internal/repository"
	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/pkg/clickclient"
	"github.com/d60-Lab/clicker/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	store := repository.NewStore(db)
	if err := store.InitSchema(); err != nil {
		panic(err)
	}
	ctx := context.Background()

	users := envInt("USERS", 200)
	rounds := envInt("ROUNDS", 20)
	conc := envInt("CONC", 16)
	// 每个用户两次尝试的间隔，小于窗口的会被拒绝
	gap := time.Duration(envInt("GAP_MS", 400)) * time.Millisecond

	stats := service.NewStatsService(store, nil, service.StatsOptionsFromConfig(cfg.Stats))

	var presence *service.PresenceService
	var notifier service.PresenceNotifier
	stop := func(context.Context) error { return nil }
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		presence = service.NewPresenceService(rdb, store, stats, service.PresenceOptionsFromConfig(cfg.Presence))
		stop = presence.Start()
		notifier = presence
	}
	clicks := service.NewClickService(store, cfg.Clicks.Window, notifier, nil)

	ids := make([]service.Identity, users)
	for i := range ids {
		ids[i] = service.Identity{UserID: fmt.Sprintf("bench_%d_%d", time.Now().Unix(), i), Username: fmt.Sprintf("bench%d", i)}
		if presence != nil {
			if _, err := presence.Join(cfg.Presence.DefaultRoom, ids[i], "bench"); err != nil {
				panic(err)
			}
		}
	}

	// TARGET 指向运行中的服务时经 HTTP 点击，否则直接调用服务层
	target := os.Getenv("TARGET")
	click := func(ctx context.Context, i int) error {
		_, err := clicks.RecordClick(ctx, ids[i])
		return err
	}
	if target != "" {
		click = must(newRemoteClicker(cfg, target, ids)).click
	}

	maxQ := 0
	quitSample := make(chan struct{})
	if presence != nil {
		go func() {
			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if q := presence.QueueLen(); q > maxQ {
						maxQ = q
					}
				case <-quitSample:
					return
				}
			}
		}()
	}

	var accepted, limited, cooled, failed int64
	var mu sync.Mutex
	lat := make([]time.Duration, 0, users*rounds)

	feed := make(chan int, users)
	for i := 0; i < users; i++ {
		feed <- i
	}
	close(feed)

	t0 := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < conc; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range feed {
				for r := 0; r < rounds; r++ {
					st := time.Now()
					err := click(ctx, i)
					d := time.Since(st)
					switch {
					case err == nil:
						atomic.AddInt64(&accepted, 1)
					case errors.Is(err, service.ErrRateLimited):
						atomic.AddInt64(&limited, 1)
					case errors.Is(err, clickclient.ErrCooldown):
						atomic.AddInt64(&cooled, 1)
					default:
						atomic.AddInt64(&failed, 1)
					}
					mu.Lock()
					lat = append(lat, d)
					mu.Unlock()
					time.Sleep(gap)
				}
			}
		}()
	}
	wg.Wait()
	total := time.Since(t0)
	close(quitSample)

	drainStart := time.Now()
	_ = stop(context.Background())
	drain := time.Since(drainStart)

	summary, err := stats.TotalClicks(ctx)
	if err != nil {
		panic(err)
	}

	fmt.Printf("USERS=%d, ROUNDS=%d, CONC=%d, GAP=%v, WINDOW=%v, TARGET=%q\n", users, rounds, conc, gap, cfg.Clicks.Window, target)
	fmt.Printf("Attempts: %d in %v, accepted=%d, rate_limited=%d, cooldown=%d, failed=%d\n",
		len(lat), total, accepted, limited, cooled, failed)
	fmt.Printf("Click latency p50=%v p95=%v p99=%v\n", pct(lat, 0.50), pct(lat, 0.95), pct(lat, 0.99))
	fmt.Printf("Ledger total=%d truncated=%v scanned=%d\n", summary.Total, summary.Truncated, summary.ScannedRows)
	if presence != nil {
		fmt.Printf("Presence: maxQueue=%d, drain=%v\n", maxQ, drain)
	}
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}
