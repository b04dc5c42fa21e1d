package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/binder-tracker/backend/internal/models"
	"github.com/codyseavey/binder-tracker/backend/internal/services"
)

const maxPublicBinders = 200

type BinderHandler struct {
	binders   *services.BinderService
	valuation *services.ValuationService
	snapshots *services.SnapshotService
}

func NewBinderHandler(binders *services.BinderService, valuation *services.ValuationService, snapshots *services.SnapshotService) *BinderHandler {
	return &BinderHandler{
		binders:   binders,
		valuation: valuation,
		snapshots: snapshots,
	}
}

func (h *BinderHandler) ListBinders(c *gin.Context) {
	ownerID := c.Query("owner_id")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'owner_id' is required"})
		return
	}

	binders, err := h.binders.ListBinders(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, binders)
}

// ListPublicBinders lists community binders
func (h *BinderHandler) ListPublicBinders(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > maxPublicBinders {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxPublicBinders)})
		return
	}

	binders, err := h.binders.ListPublicBinders(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, binders)
}

func (h *BinderHandler) CreateBinder(c *gin.Context) {
	var req models.CreateBinderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	binder, err := h.binders.CreateBinder(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, binder)
}

// GetBinder returns the binder with resolved cards and its valuation.
// Query: sort=name|price-high|price-low|purchase-date|profit
func (h *BinderHandler) GetBinder(c *gin.Context) {
	detail, err := h.valuation.BinderDetail(c.Request.Context(), c.Param("id"), c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *BinderHandler) UpdateBinder(c *gin.Context) {
	var req models.UpdateBinderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	binder, err := h.binders.UpdateBinder(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, binder)
}

func (h *BinderHandler) ToggleVisibility(c *gin.Context) {
	binder, err := h.binders.ToggleVisibility(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, binder)
}

func (h *BinderHandler) DeleteBinder(c *gin.Context) {
	if err := h.binders.DeleteBinder(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *BinderHandler) DuplicateBinder(c *gin.Context) {
	var req models.DuplicateBinderRequest
	// Body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	binder, err := h.binders.DuplicateBinder(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, binder)
}

// AddCard adds a card to the binder. Re-adding a card already in the binder
// returns the existing entry with 200 instead of 201.
func (h *BinderHandler) AddCard(c *gin.Context) {
	var req models.AddBinderCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Condition != nil {
		cond := models.NormalizeCondition(string(*req.Condition))
		if cond == "" {
			unknownCondition(c)
			return
		}
		req.Condition = &cond
	}

	item, created, err := h.binders.AddCard(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, item)
}

func (h *BinderHandler) UpdateCard(c *gin.Context) {
	var req models.UpdateBinderCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Condition != nil {
		cond := models.NormalizeCondition(string(*req.Condition))
		if cond == "" {
			unknownCondition(c)
			return
		}
		req.Condition = &cond
	}

	item, err := h.binders.UpdateCard(c.Request.Context(), c.Param("id"), c.Param("itemId"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *BinderHandler) RemoveCard(c *gin.Context) {
	if err := h.binders.RemoveCard(c.Request.Context(), c.Param("id"), c.Param("itemId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *BinderHandler) GetValue(c *gin.Context) {
	v, err := h.valuation.ValueBinder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// GetValueHistory returns daily snapshots.
// Query: period=week|month|3month|year|all (default month)
func (h *BinderHandler) GetValueHistory(c *gin.Context) {
	binderID := c.Param("id")
	if _, err := h.binders.GetBinder(c.Request.Context(), binderID); err != nil {
		respondError(c, err)
		return
	}

	period := c.DefaultQuery("period", "month")
	snapshots, err := h.snapshots.GetHistory(c.Request.Context(), binderID, period)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ValueHistoryResponse{
		Snapshots: snapshots,
		Period:    period,
		Latest:    h.snapshots.GetLastSnapshot(c.Request.Context(), binderID),
	})
}

// TakeSnapshot records today's value immediately
func (h *BinderHandler) TakeSnapshot(c *gin.Context) {
	snapshot, err := h.snapshots.TakeSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func unknownCondition(c *gin.Context) {
	accepted := make([]string, 0, len(models.AllConditions()))
	for _, cond := range models.AllConditions() {
		accepted = append(accepted, cond.Label())
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      "unknown condition",
		"conditions": accepted,
	})
}
