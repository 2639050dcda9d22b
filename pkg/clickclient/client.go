// Package clickclient clicker HTTP API 的 Go 客户端。
//
// Click 在请求发出前先过本地冷却；服务端窗口独立生效
package clickclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrCooldown 本地冷却期内的点击，不会发出请求
var ErrCooldown = errors.New("click cooldown")

const DefaultCooldown = 250 * time.Millisecond

// APIError 服务端返回的非 2xx 响应
type APIError struct {
	Status  int
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clicker api: %d %s", e.Status, e.Message)
}

// RateLimited 服务端拒绝（429）
func (e *APIError) RateLimited() bool { return e.Status == http.StatusTooManyRequests }

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithCooldown cooldown <= 0 关闭本地冷却
func WithCooldown(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(DefaultCooldown), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Click struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
}

type ClickResult struct {
	Click          Click `json:"click"`
	ProfileCreated bool  `json:"profileCreated"`
}

func (c *Client) Click(ctx context.Context) (*ClickResult, error) {
	if !c.limiter.Allow() {
		return nil, ErrCooldown
	}
	var res ClickResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/clicks", nil, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

type Balance struct {
	TotalClicks int64 `json:"totalClicks"`
	Spent       int64 `json:"spent"`
	Available   int64 `json:"available"`
}

type Purchase struct {
	ID          string `json:"id"`
	ItemSlug    string `json:"itemSlug"`
	Amount      int64  `json:"amount"`
	PurchasedAt int64  `json:"purchasedAt"`
}

type PurchaseResult struct {
	Purchase Purchase `json:"purchase"`
	Balance  Balance  `json:"balance"`
}

func (c *Client) Purchase(ctx context.Context, slug string, equip bool) (*PurchaseResult, error) {
	body := map[string]any{"itemSlug": slug, "equip": equip}
	var res PurchaseResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/shop/purchases", body, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

type TotalClicks struct {
	Total       int64 `json:"total"`
	GeneratedAt int64 `json:"generatedAt"`
	ScannedRows int   `json:"scannedRows"`
	Truncated   bool  `json:"truncated"`
}

type UserClickCount struct {
	UserID      string `json:"userId"`
	ClickCount  int64  `json:"clickCount"`
	GeneratedAt int64  `json:"generatedAt"`
	Truncated   bool   `json:"truncated"`
}

type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	Count       int64  `json:"count"`
	DisplayName string `json:"displayName"`
}

type Leaderboard struct {
	TotalClicks int64              `json:"totalClicks"`
	GeneratedAt int64              `json:"generatedAt"`
	Truncated   bool               `json:"truncated"`
	Entries     []LeaderboardEntry `json:"entries"`
}

func (c *Client) Summary(ctx context.Context) (*TotalClicks, error) {
	var res TotalClicks
	if err := c.call(ctx, http.MethodGet, "/stats/summary", nil, &res, false); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Leaderboard(ctx context.Context) (*Leaderboard, error) {
	var res Leaderboard
	if err := c.call(ctx, http.MethodGet, "/stats/leaderboard", nil, &res, false); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UserStats(ctx context.Context, userID string) (*UserClickCount, error) {
	var res UserClickCount
	if err := c.call(ctx, http.MethodGet, "/stats/user/"+url.PathEscape(userID), nil, &res, false); err != nil {
		return nil, err
	}
	return &res, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call enveloped 为 true 时响应是 {code,message,data}，否则是裸快照或 {error}
func (c *Client) call(ctx context.Context, method, path string, body, out any, enveloped bool) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if !enveloped {
		if resp.StatusCode/100 != 2 {
			var e struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal(raw, &e)
			return &APIError{Status: resp.StatusCode, Message: e.Error}
		}
		return json.Unmarshal(raw, out)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode/100 != 2 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message, Data: env.Data}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
