package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/pkg/logger"
	"github.com/d60-Lab/clicker/pkg/response"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

type presenceMessage struct {
	Type    string                   `json:"type"` // snapshot | event | error
	Members []service.PresenceRecord `json:"members,omitempty"`
	Event   *service.PresenceEvent   `json:"event,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

// RoomMembers 房间当前在线成员
// @Summary 房间在线成员
// @Tags 在线状态
// @Produce json
// @Param room path string true "房间"
// @Success 200 {object} response.Response{data=[]service.PresenceRecord}
// @Failure 503 {object} response.Response
// @Router /presence/{room} [get]
func (h *Handler) RoomMembers(c *gin.Context) {
	if h.presence == nil {
		response.ServiceUnavailable(c, "presence disabled")
		return
	}
	members, err := h.presence.Room(c.Request.Context(), c.Param("room"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"room": c.Param("room"), "members": members})
}

// PresenceSocket 加入房间：先推送成员快照，之后推送房间事件；
// 客户端发送 {"status": "..."} 更新自己的状态，断开即撤回
// @Summary 在线状态 websocket
// @Tags 在线状态
// @Security BearerAuth
// @Param room path string true "房间"
// @Param access_token query string false "浏览器无法设置 Authorization 时使用"
// @Param status query string false "初始状态"
// @Router /presence/{room}/ws [get]
func (h *Handler) PresenceSocket(c *gin.Context) {
	if h.presence == nil {
		response.ServiceUnavailable(c, "presence disabled")
		return
	}
	id, ok := identity(c)
	if !ok {
		return
	}
	room := c.Param("room")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.String("room", room), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, unsubscribe, err := h.presence.Subscribe(ctx, room)
	if err != nil {
		_ = conn.WriteJSON(presenceMessage{Type: "error", Error: "presence unavailable"})
		return
	}
	defer unsubscribe()

	sess, err := h.presence.Join(room, id, c.Query("status"))
	if err != nil {
		_ = conn.WriteJSON(presenceMessage{Type: "error", Error: err.Error()})
		return
	}
	defer sess.Close()

	if members, err := h.presence.Room(ctx, room); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(presenceMessage{Type: "snapshot", Members: members}); err != nil {
			return
		}
	}

	go readPresence(conn, sess, cancel)

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(presenceMessage{Type: "event", Event: &evt}); err != nil {
				return
			}
		case <-ping.C:
			sess.Touch()
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPresence(conn *websocket.Conn, sess *service.Session, done context.CancelFunc) {
	defer done()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var msg struct {
			Status string `json:"status"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		sess.SetStatus(msg.Status)
	}
}
