package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/clicker/internal/model"
	"github.com/d60-Lab/clicker/internal/repository"
	"github.com/d60-Lab/clicker/pkg/logger"
)

// ClickResult 一次被接受的点击
type ClickResult struct {
	Click          *model.Click `json:"click"`
	ProfileCreated bool         `json:"profileCreated"`
}

// ClickService 点击流水
type ClickService interface {
	RecordClick(ctx context.Context, id Identity) (*ClickResult, error)
}

// PresenceNotifier 点击数或资料变化后通知在线状态刷新
type PresenceNotifier interface {
	Refresh(userID string)
}

type clickService struct {
	store    *repository.Store
	window   time.Duration
	now      func() time.Time
	notifier PresenceNotifier
}

func NewClickService(store *repository.Store, window time.Duration, notifier PresenceNotifier, now func() time.Time) ClickService {
	if now == nil {
		now = time.Now
	}
	return &clickService{store: store, window: window, now: now, notifier: notifier}
}

// RecordClick 窗口内已有点击则拒绝；首次点击在同一事务内创建资料与点击
func (s *clickService) RecordClick(ctx context.Context, id Identity) (*ClickResult, error) {
	if id.UserID == "" {
		return nil, ErrUnauthenticated
	}
	now := s.now().UnixMilli()

	recent, err := s.store.Clicks.ExistsSince(ctx, id.UserID, now-s.window.Milliseconds())
	if err != nil {
		return nil, storeErr(err)
	}
	if recent {
		clicksRecorded.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	profile, err := s.store.Profiles.GetByUserID(ctx, id.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr(err)
	}

	res := &ClickResult{}
	click := &model.Click{ID: uuid.New().String(), UserID: id.UserID, CreatedAt: now}
	if profile != nil {
		click.AuthorRef = &profile.ID
		if err := s.store.Clicks.Create(ctx, click); err != nil {
			return nil, storeErr(err)
		}
	} else {
		err = s.store.Transaction(ctx, func(tx *repository.Store) error {
			p := newProfile(id)
			created, err := tx.Profiles.CreateIfAbsent(ctx, p)
			if err != nil {
				return err
			}
			if !created {
				// 并发创建，取已存在的那一行
				if p, err = tx.Profiles.GetByUserID(ctx, id.UserID); err != nil {
					return err
				}
			}
			res.ProfileCreated = created
			click.AuthorRef = &p.ID
			return tx.Clicks.Create(ctx, click)
		})
		if err != nil {
			return nil, storeErr(err)
		}
	}

	res.Click = click
	clicksRecorded.WithLabelValues("accepted").Inc()
	logger.Debug("click recorded", zap.String("user_id", id.UserID), zap.Bool("profile_created", res.ProfileCreated))
	if s.notifier != nil {
		s.notifier.Refresh(id.UserID)
	}
	return res, nil
}

func newProfile(id Identity) *model.DisplayName {
	p := &model.DisplayName{ID: uuid.New().String(), UserID: id.UserID, DisplayName: id.DefaultDisplayName()}
	if id.ImageURL != "" {
		img := id.ImageURL
		p.ProfileImageURL = &img
	}
	return p
}
