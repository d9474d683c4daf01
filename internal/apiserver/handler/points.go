package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/halolabs/memberd/internal/apiserver/middleware"
	"github.com/halolabs/memberd/internal/common/dto"
	"github.com/halolabs/memberd/internal/common/errorx"
)

// AddPoints grants points to the caller and may promote their level.
func (h *Handler) AddPoints(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		h.errors.Handle(c, errorx.ErrUnauthorized)
		return
	}

	var req dto.AddPointsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.points.Apply(c.Request.Context(), user.ID, req.Points, req.Type, req.Description, req.RelatedID)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, dto.PointsResponse{Points: result.Points, LevelID: result.LevelID})
}

// DeductPoints spends points; the balance never goes negative.
func (h *Handler) DeductPoints(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		h.errors.Handle(c, errorx.ErrUnauthorized)
		return
	}

	var req dto.DeductPointsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.points.Apply(c.Request.Context(), user.ID, -req.Points, req.Type, req.Description, req.RelatedID)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.ok(c, dto.PointsResponse{Points: result.Points, LevelID: result.LevelID})
}

// ListPointRecords pages through the caller's audit trail.
func (h *Handler) ListPointRecords(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		h.errors.Handle(c, errorx.ErrUnauthorized)
		return
	}

	var page dto.Pagination
	if !h.bindQuery(c, &page) {
		return
	}

	records, total, err := h.points.ListRecords(c.Request.Context(), user.ID, page.Page, page.Limit)
	if err != nil {
		h.errors.Handle(c, err)
		return
	}
	h.paged(c, records, total, page)
}
