package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/clicker/internal/model"
	"github.com/d60-Lab/clicker/internal/service"
	"github.com/d60-Lab/clicker/pkg/response"
)

type purchaseRequest struct {
	ItemSlug    string  `json:"itemSlug" binding:"required"`
	Equip       bool    `json:"equip"`
	DisplayName *string `json:"displayName"`
}

type equipRequest struct {
	Slot  string  `json:"slot" binding:"required,oneof=color hat accessory effect name"`
	Value *string `json:"value"`
}

// Me 当前用户的资料、余额与已拥有条目
// @Summary 我的装扮
// @Tags 经济
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=service.Loadout}
// @Failure 401 {object} response.Response
// @Router /api/v1/me [get]
func (h *Handler) Me(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	loadout, err := h.economy.Loadout(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, loadout)
}

// Equip 装备或卸下一个栏位；value 为 null 表示清空（name 栏位恢复默认名）
// @Summary 装备
// @Tags 经济
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body equipRequest true "栏位与条目 slug"
// @Success 200 {object} response.Response{data=model.DisplayName}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/me/loadout [put]
func (h *Handler) Equip(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req equipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	profile, err := h.economy.Equip(c.Request.Context(), id, model.Slot(req.Slot), req.Value)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, profile)
}

// MyPurchases 购买记录
// @Summary 我的购买记录
// @Tags 经济
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.AvatarPurchase}
// @Router /api/v1/me/purchases [get]
func (h *Handler) MyPurchases(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	list, err := h.economy.Purchases(c.Request.Context(), id.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}

// ShopItems 上架中的条目
// @Summary 商店列表
// @Tags 经济
// @Produce json
// @Success 200 {object} response.Response{data=[]model.AvatarItem}
// @Router /api/v1/shop/items [get]
func (h *Handler) ShopItems(c *gin.Context) {
	items, err := h.catalog.ListShop(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": items})
}

// Purchase 购买条目，可同时装备或设置显示名
// @Summary 购买
// @Tags 经济
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body purchaseRequest true "购买信息"
// @Success 201 {object} response.Response{data=service.PurchaseResult}
// @Failure 402 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/shop/purchases [post]
func (h *Handler) Purchase(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.economy.Purchase(c.Request.Context(), id, service.PurchaseRequest{
		ItemSlug:    req.ItemSlug,
		Equip:       req.Equip,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, res)
}
