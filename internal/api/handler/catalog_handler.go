package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/pkg/response"
)

// ListItems 全部目录条目（含已下架）
// @Summary 目录列表
// @Tags 目录管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.AvatarItem}
// @Failure 403 {object} response.Response
// @Router /api/v1/admin/items [get]
func (h *Handler) ListItems(c *gin.Context) {
	items, err := h.catalog.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": items})
}

// CreateItem 新建条目
// @Summary 新建条目
// @Tags 目录管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ItemInput true "条目"
// @Success 201 {object} response.Response{data=model.AvatarItem}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/admin/items [post]
func (h *Handler) CreateItem(c *gin.Context) {
	var in service.ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	item, err := h.catalog.CreateItem(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateItem 部分更新；slug 不可修改
// @Summary 更新条目
// @Tags 目录管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "条目ID"
// @Param request body service.ItemPatch true "待更新字段"
// @Success 200 {object} response.Response{data=model.AvatarItem}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/admin/items/{id} [put]
func (h *Handler) UpdateItem(c *gin.Context) {
	var patch service.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	item, err := h.catalog.UpdateItem(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, item)
}

// DeactivateItem 下架（软删除）
// @Summary 下架条目
// @Tags 目录管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "条目ID"
// @Success 200 {object} response.Response{data=model.AvatarItem}
// @Failure 404 {object} response.Response
// @Router /api/v1/admin/items/{id} [delete]
func (h *Handler) DeactivateItem(c *gin.Context) {
	item, err := h.catalog.DeactivateItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, item)
}
