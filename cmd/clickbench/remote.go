package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/d60-Lab/clicker/config"
	"github.com/d60-Lab/clicker/internal/api/middleware"
	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/pkg/clickclient"
)

// remoteClicker 经 HTTP API 点击，每个用户一个客户端，本地冷却取 clicks.client_cooldown
type remoteClicker struct {
	clients []*clickclient.Client
}

func newRemoteClicker(cfg *config.Config, target string, ids []service.Identity, opts ...clickclient.Option) (*remoteClicker, error) {
	clients := make([]*clickclient.Client, len(ids))
	for i, id := range ids {
		token, err := middleware.IssueToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, id, time.Hour)
		if err != nil {
			return nil, err
		}
		o := append([]clickclient.Option{clickclient.WithCooldown(cfg.Clicks.ClientCooldown)}, opts...)
		clients[i] = clickclient.New(target, token, o...)
	}
	return &remoteClicker{clients: clients}, nil
}

// click 服务端 429 映射为 service.ErrRateLimited，本地冷却原样返回 clickclient.ErrCooldown
func (r *remoteClicker) click(ctx context.Context, i int) error {
	_, err := r.clients[i].Click(ctx)
	var apiErr *clickclient.APIError
	if errors.As(err, &apiErr) && apiErr.RateLimited() {
		return fmt.Errorf("%w: %s", service.ErrRateLimited, apiErr.Message)
	}
	return err
}
