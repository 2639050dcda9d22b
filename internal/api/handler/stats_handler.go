package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/clicker/pkg/response"
)

// Summary 全站点击数
// @Summary 全站点击数快照
// @Tags 统计
// @Produce json
// @Success 200 {object} service.TotalClicksSnapshot
// @Failure 500 {object} map[string]string
// @Router /stats/summary [get]
func (h *Handler) Summary(c *gin.Context) {
	snap, err := h.stats.TotalClicks(c.Request.Context())
	if err != nil {
		response.SnapshotError(c, err)
		return
	}
	response.Snapshot(c, snap)
}

// Leaderboard 排行榜（固定前 100）
// @Summary 排行榜快照
// @Tags 统计
// @Produce json
// @Success 200 {object} service.LeaderboardSnapshot
// @Failure 500 {object} map[string]string
// @Router /stats/leaderboard [get]
func (h *Handler) Leaderboard(c *gin.Context) {
	snap, err := h.stats.Leaderboard(c.Request.Context(), 0)
	if err != nil {
		response.SnapshotError(c, err)
		return
	}
	response.Snapshot(c, snap)
}

// UserStats 单个用户点击数；userId 可带认证方前缀
// @Summary 用户点击数快照
// @Tags 统计
// @Produce json
// @Param userId path string true "用户ID（可含 provider| 前缀）"
// @Success 200 {object} service.UserClickCountSnapshot
// @Failure 500 {object} map[string]string
// @Router /stats/user/{userId} [get]
func (h *Handler) UserStats(c *gin.Context) {
	snap, err := h.stats.UserClickCount(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.SnapshotError(c, err)
		return
	}
	response.Snapshot(c, snap)
}
