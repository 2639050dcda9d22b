package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/clicker/pkg/response"
)

// Click 记录一次点击
// @Summary 点击
// @Tags 点击
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Response{data=service.ClickResult}
// @Failure 401 {object} response.Response
// @Failure 429 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/clicks [post]
func (h *Handler) Click(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	res, err := h.clicks.RecordClick(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, res)
}
