package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/halolabs/memberd/internal/apiserver/middleware"
	"github.com/halolabs/memberd/internal/common/dto"
	"github.com/halolabs/memberd/internal/common/errorx"
)

// RedeemCard consumes a recharge card for the caller.
func (h *Handler) RedeemCard(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		h.errors.Handle(c, errorx.ErrUnauthorized)
		return
	}

	var req dto.RedeemCardRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.recharge.RedeemCard(c.Request.Context(), user.ID, req.CardNo, req.CardPassword)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, dto.RedeemCardResponse{
		ExpiresDays:     result.ExpiresDays,
		Points:          result.Points,
		MemberExpiresAt: result.MemberExpiresAt,
		TotalPoints:     result.TotalPoints,
	})
}

// CreateOrder opens a pending online recharge order.
func (h *Handler) CreateOrder(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		h.errors.Handle(c, errorx.ErrUnauthorized)
		return
	}

	var req dto.CreateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.recharge.CreateOnlineOrder(c.Request.Context(), user.ID, req.ExpiresDays, req.Points, req.PaymentMethod)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, dto.CreateOrderResponse{
		OrderID: result.OrderID,
		OrderNo: result.OrderNo,
		Status:  result.Status,
	})
}

// ListRechargeRecords pages through the caller's recharge history.
func (h *Handler) ListRechargeRecords(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		h.errors.Handle(c, errorx.ErrUnauthorized)
		return
	}

	var page dto.Pagination
	if !h.bindQuery(c, &page) {
		return
	}

	records, total, err := h.recharge.ListRecords(c.Request.Context(), user.ID, page.Page, page.Limit)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.paged(c, records, total, page)
}
