package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/clicker/internal/api/middleware"
	"github.com/d60-Lab/clicker/internal/repository"
	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/pkg/response"
)

// Handler 聚合各业务服务的 HTTP 入口
type Handler struct {
	clicks   service.ClickService
	stats    service.StatsService
	economy  service.EconomyService
	catalog  service.CatalogService
	presence *service.PresenceService
	store    *repository.Store
	rdb      *redis.Client

	clickWindow time.Duration
	upgrader    websocket.Upgrader
}

// Deps 构造 Handler 所需依赖；Presence 与 Redis 可为空
type Deps struct {
	Clicks      service.ClickService
	Stats       service.StatsService
	Economy     service.EconomyService
	Catalog     service.CatalogService
	Presence    *service.PresenceService
	Store       *repository.Store
	Redis       *redis.Client
	ClickWindow time.Duration
}

func New(d Deps) *Handler {
	return &Handler{
		clicks:      d.Clicks,
		stats:       d.Stats,
		economy:     d.Economy,
		catalog:     d.Catalog,
		presence:    d.Presence,
		store:       d.Store,
		rdb:         d.Redis,
		clickWindow: d.ClickWindow,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func identity(c *gin.Context) (service.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok || id.UserID == "" {
		response.Unauthorized(c, "unauthenticated")
		return service.Identity{}, false
	}
	return id, true
}

// fail 把业务错误映射为 HTTP 状态与业务码
func (h *Handler) fail(c *gin.Context, err error) {
	var ib *service.InsufficientBalanceError
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		response.BadRequest(c, ve.Error())
	case errors.Is(err, service.ErrSlugImmutable):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrNotOwned):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrItemNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrAlreadyOwned), errors.Is(err, service.ErrSlugTaken):
		response.Conflict(c, err.Error())
	case errors.As(err, &ib):
		response.Error(c, http.StatusPaymentRequired, response.CodeInsufficientBalance, ib.Error(), gin.H{
			"price":     ib.Price,
			"balance":   ib.Balance,
			"shortfall": ib.Shortfall,
		})
	case errors.Is(err, service.ErrRateLimited):
		secs := int(h.clickWindow.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		response.TooManyRequests(c, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable), errors.Is(err, service.ErrAggregationUnavailable):
		_ = c.Error(err)
		response.ServiceUnavailable(c, "temporarily unavailable, please retry")
	default:
		response.InternalError(c, err)
	}
}
