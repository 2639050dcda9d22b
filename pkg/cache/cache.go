// Package cache 聚合快照的短 TTL 缓存，用于吸收读突发。
// 值以 JSON 存储，内存与 Redis 两种后端行为一致（调用方拿到的总是副本）
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/d60-Lab/clicker/pkg/logger"
)

// Cache key -> (value, expiry)
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

var requests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "clicker",
	Subsystem: "snapshot_cache",
	Name:      "requests_total",
	Help:      "Snapshot cache lookups by result.",
}, []string{"result"})

// DefaultFillTimeout 单次回源的上限
const DefaultFillTimeout = 30 * time.Second

// Loader 同一 key 的并发未命中只回源一次
type Loader struct {
	cache       Cache
	group       singleflight.Group
	fillTimeout time.Duration
}

func NewLoader(c Cache) *Loader { return &Loader{cache: c, fillTimeout: DefaultFillTimeout} }

// WithFillTimeout d <= 0 时使用 DefaultFillTimeout
func (l *Loader) WithFillTimeout(d time.Duration) *Loader {
	if d <= 0 {
		d = DefaultFillTimeout
	}
	l.fillTimeout = d
	return l
}

// Fetch 命中直接返回，否则回源并按 ttl 写入；回源错误原样返回且不缓存。
// 回源与发起请求的 ctx 解绑：首个调用方取消不影响其他等待者，
// 调用方自己的 ctx 结束时只是它自己提前返回
func Fetch[T any](ctx context.Context, l *Loader, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := lookup[T](ctx, l.cache, key); ok {
		requests.WithLabelValues("hit").Inc()
		return v, nil
	}

	ch := l.group.DoChan(key, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.fillTimeout)
		defer cancel()

		if v, ok := lookup[T](fillCtx, l.cache, key); ok {
			requests.WithLabelValues("hit").Inc()
			return v, nil
		}
		requests.WithLabelValues("miss").Inc()
		v, err := load(fillCtx)
		if err != nil {
			requests.WithLabelValues("error").Inc()
			return v, err
		}
		if payload, mErr := json.Marshal(v); mErr == nil {
			if sErr := l.cache.Set(fillCtx, key, payload, ttl); sErr != nil {
				logger.Warn("snapshot cache set failed", zap.String("key", key), zap.Error(sErr))
			}
		}
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		requests.WithLabelValues("abandoned").Inc()
		return zero, ctx.Err()
	}
}

func lookup[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var out T
	data, ok, err := c.Get(ctx, key)
	if err != nil {
		logger.Warn("snapshot cache get failed", zap.String("key", key), zap.Error(err))
		return out, false
	}
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false
	}
	return out, true
}
