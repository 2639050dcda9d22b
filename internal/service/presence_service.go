package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/clicker/config"
	"github.com/d60-Lab/clicker/internal/repository"
	"github.com/d60-Lab/clicker/pkg/logger"
	"github.com/d60-Lab/clicker/pkg/monitor"
)

// PresenceRecord 房间里一个会话当前的公开状态
type PresenceRecord struct {
	SessionID       string  `json:"sessionId"`
	UserID          string  `json:"userId"`
	Name            string  `json:"name"`
	Status          string  `json:"status,omitempty"`
	ProfileImageURL *string `json:"profileImageUrl,omitempty"`
	ClicksGiven     int64   `json:"clicksGiven"`
	CursorColor     *string `json:"cursorColor,omitempty"`
	HatSlug         *string `json:"hatSlug,omitempty"`
	AccessorySlug   *string `json:"accessorySlug,omitempty"`
	EffectSlug      *string `json:"effectSlug,omitempty"`
	UpdatedAt       int64   `json:"updatedAt"`
}

// PresenceEvent 广播到房间频道的消息；Record 为空表示撤回
type PresenceEvent struct {
	Room      string          `json:"room"`
	SessionID string          `json:"sessionId"`
	Record    *PresenceRecord `json:"record"`
	At        int64           `json:"at"`
}

type PresenceOptions struct {
	QueueSize int
	Workers   int
	StateTTL  time.Duration
	// RetractWait 队列满时撤回最多等待的时长，超时仍丢弃
	RetractWait time.Duration
	Now         func() time.Time
	// Report 写 Redis 失败时调用，默认上报 Sentry
	Report func(error)
}

func PresenceOptionsFromConfig(c config.PresenceConfig) PresenceOptions {
	return PresenceOptions{QueueSize: c.QueueSize, Workers: c.Workers, StateTTL: c.StateTTL, RetractWait: c.RetractWait}
}

type presenceAction int

const (
	actionPublish presenceAction = iota + 1
	actionRetract
)

func (a presenceAction) String() string {
	if a == actionRetract {
		return "retract"
	}
	return "publish"
}

type presenceJob struct {
	action  presenceAction
	session *Session
}

// PresenceService 在线状态：会话持有自己的记录，更新经有界队列异步写入 Redis
// （HSET 房间状态 + PUBLISH 房间频道）。队列满时丢弃
type PresenceService struct {
	rdb   *redis.Client
	store *repository.Store
	stats StatsService
	opts  PresenceOptions
	ch    chan presenceJob

	mu       sync.Mutex
	sessions map[string]map[*Session]struct{}
}

func NewPresenceService(rdb *redis.Client, store *repository.Store, stats StatsService, opts PresenceOptions) *PresenceService {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 10000
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.StateTTL <= 0 {
		opts.StateTTL = 2 * time.Minute
	}
	if opts.RetractWait <= 0 {
		opts.RetractWait = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Report == nil {
		opts.Report = monitor.Capture
	}
	return &PresenceService{
		rdb:      rdb,
		store:    store,
		stats:    stats,
		opts:     opts,
		ch:       make(chan presenceJob, opts.QueueSize),
		sessions: make(map[string]map[*Session]struct{}),
	}
}

// Start 启动 worker，返回的函数在 ctx 到期前等待队列排空后停止
func (p *PresenceService) Start() func(context.Context) error {
	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job := <-p.ch:
					p.handle(job)
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for len(p.ch) > 0 {
			select {
			case <-ctx.Done():
				close(stopCh)
				wg.Wait()
				return ctx.Err()
			case <-ticker.C:
			}
		}
		close(stopCh)
		wg.Wait()
		return nil
	}
}

// Join 为身份在房间里开一个会话并异步发布首条记录
func (p *PresenceService) Join(room string, id Identity, status string) (*Session, error) {
	if id.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if room == "" {
		return nil, &ValidationError{Field: "room", Reason: "required"}
	}
	s := &Session{ID: uuid.New().String(), Room: room, identity: id, status: status, svc: p}

	p.mu.Lock()
	set, ok := p.sessions[id.UserID]
	if !ok {
		set = make(map[*Session]struct{})
		p.sessions[id.UserID] = set
	}
	set[s] = struct{}{}
	p.mu.Unlock()

	p.enqueue(actionPublish, s)
	return s, nil
}

// Refresh 重新计算该用户所有会话的记录
func (p *PresenceService) Refresh(userID string) {
	p.mu.Lock()
	sessions := make([]*Session, 0, len(p.sessions[userID]))
	for s := range p.sessions[userID] {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	for _, s := range sessions {
		p.enqueue(actionPublish, s)
	}
}

// Room 读取房间当前成员，过期成员被忽略
func (p *PresenceService) Room(ctx context.Context, room string) ([]PresenceRecord, error) {
	raw, err := p.rdb.HGetAll(ctx, stateKey(room)).Result()
	if err != nil {
		return nil, storeErr(err)
	}
	cutoff := p.opts.Now().Add(-p.opts.StateTTL).UnixMilli()
	out := make([]PresenceRecord, 0, len(raw))
	for _, payload := range raw {
		var rec PresenceRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			continue
		}
		if rec.UpdatedAt < cutoff {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}

// Subscribe 订阅房间频道，返回确认订阅后的事件流与关闭函数
func (p *PresenceService) Subscribe(ctx context.Context, room string) (<-chan PresenceEvent, func() error, error) {
	sub := p.rdb.Subscribe(ctx, channelKey(room))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, storeErr(err)
	}
	out := make(chan PresenceEvent, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var evt PresenceEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				logger.Warn("bad presence payload", zap.String("room", room), zap.Error(err))
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close, nil
}

// QueueLen 当前队列长度（采样值）
func (p *PresenceService) QueueLen() int { return len(p.ch) }

// enqueue 发布在队列满时直接丢弃（下一次发布会覆盖）；
// 撤回没有后续更新可以补救，先等待 RetractWait 再丢弃
func (p *PresenceService) enqueue(action presenceAction, s *Session) {
	job := presenceJob{action: action, session: s}
	select {
	case p.ch <- job:
		return
	default:
	}
	if action == actionRetract {
		timer := time.NewTimer(p.opts.RetractWait)
		defer timer.Stop()
		select {
		case p.ch <- job:
			return
		case <-timer.C:
		}
	}
	presenceDropped.WithLabelValues(action.String()).Inc()
	logger.Warn("presence queue full, drop update",
		zap.String("action", action.String()),
		zap.String("room", s.Room), zap.String("user_id", s.identity.UserID))
}

func (p *PresenceService) handle(job presenceJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := job.session
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch job.action {
	case actionPublish:
		if s.closed {
			return
		}
		rec := p.build(ctx, s)
		if err = p.write(ctx, s.Room, rec); err == nil {
			s.record = rec
		}
	case actionRetract:
		err = p.remove(ctx, s.Room, s.ID)
	}
	if err != nil {
		logger.Warn("presence write failed", zap.String("room", s.Room), zap.String("session", s.ID), zap.Error(err))
		p.opts.Report(fmt.Errorf("presence %s %s/%s: %w", job.action, s.Room, s.ID, err))
	}
}

// build 调用方持有 s.mu
func (p *PresenceService) build(ctx context.Context, s *Session) *PresenceRecord {
	id := s.identity
	rec := &PresenceRecord{
		SessionID: s.ID,
		UserID:    id.UserID,
		Name:      id.DefaultDisplayName(),
		Status:    s.status,
		UpdatedAt: p.opts.Now().UnixMilli(),
	}
	if id.ImageURL != "" {
		img := id.ImageURL
		rec.ProfileImageURL = &img
	}
	if s.record != nil {
		rec.ClicksGiven = s.record.ClicksGiven
	}

	profile, err := p.store.Profiles.GetByUserID(ctx, id.UserID)
	switch {
	case err == nil:
		rec.Name = profile.DisplayName
		rec.CursorColor = profile.CursorColor
		rec.HatSlug = profile.HatSlug
		rec.AccessorySlug = profile.AccessorySlug
		rec.EffectSlug = profile.EffectSlug
		if profile.ProfileImageURL != nil {
			rec.ProfileImageURL = profile.ProfileImageURL
		}
	case !errors.Is(err, repository.ErrNotFound):
		logger.Warn("presence profile lookup failed", zap.String("user_id", id.UserID), zap.Error(err))
	}

	// 与排行榜使用同一份聚合快照
	if snap, err := p.stats.UserClickCount(ctx, id.UserID); err == nil {
		rec.ClicksGiven = snap.ClickCount
	} else {
		logger.Warn("presence click count failed", zap.String("user_id", id.UserID), zap.Error(err))
	}
	return rec
}

func (p *PresenceService) write(ctx context.Context, room string, rec *PresenceRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	evt, err := json.Marshal(PresenceEvent{Room: room, SessionID: rec.SessionID, Record: rec, At: rec.UpdatedAt})
	if err != nil {
		return err
	}
	pipe := p.rdb.Pipeline()
	pipe.HSet(ctx, stateKey(room), rec.SessionID, payload)
	pipe.Expire(ctx, stateKey(room), p.opts.StateTTL)
	pipe.Publish(ctx, channelKey(room), evt)
	_, err = pipe.Exec(ctx)
	return err
}

func (p *PresenceService) remove(ctx context.Context, room, sessionID string) error {
	evt, err := json.Marshal(PresenceEvent{Room: room, SessionID: sessionID, At: p.opts.Now().UnixMilli()})
	if err != nil {
		return err
	}
	pipe := p.rdb.Pipeline()
	pipe.HDel(ctx, stateKey(room), sessionID)
	pipe.Publish(ctx, channelKey(room), evt)
	_, err = pipe.Exec(ctx)
	return err
}

func (p *PresenceService) forget(s *Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.sessions[s.identity.UserID]
	delete(set, s)
	if len(set) == 0 {
		delete(p.sessions, s.identity.UserID)
	}
}

func stateKey(room string) string   { return "presence:" + room + ":state" }
func channelKey(room string) string { return "presence:" + room }

// Session 一个连接在某个房间里的在线状态，记录只由会话自己持有
type Session struct {
	ID   string
	Room string

	identity Identity
	svc      *PresenceService

	mu     sync.Mutex
	status string
	record *PresenceRecord
	closed bool
}

// Record 最近一次成功发布的记录
func (s *Session) Record() (PresenceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return PresenceRecord{}, false
	}
	return *s.record, true
}

func (s *Session) SetStatus(status string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.mu.Unlock()
	s.svc.enqueue(actionPublish, s)
}

// Touch 重新发布以续期房间状态
func (s *Session) Touch() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.svc.enqueue(actionPublish, s)
	}
}

// Close 撤回记录；重复调用无副作用
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.record = nil
	s.mu.Unlock()

	s.svc.forget(s)
	s.svc.enqueue(actionRetract, s)
}
