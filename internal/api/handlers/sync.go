package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/binder-tracker/backend/internal/services"
)

type SyncHandler struct {
	worker *services.CardSyncWorker
}

func NewSyncHandler(worker *services.CardSyncWorker) *SyncHandler {
	return &SyncHandler{
		worker: worker,
	}
}

// GetSyncStatus returns the card sync worker status
func (h *SyncHandler) GetSyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.worker.GetStatus())
}

// QueueRefresh puts a card at the front of the next sync batch
func (h *SyncHandler) QueueRefresh(c *gin.Context) {
	cardID := c.Param("id")
	if cardID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card id is required"})
		return
	}

	position := h.worker.QueueRefresh(cardID)
	c.JSON(http.StatusAccepted, gin.H{
		"card_id":        cardID,
		"queue_position": position,
	})
}

// SyncBinderCards refreshes every card referenced by a binder and reports
// how many succeeded.
func (h *SyncHandler) SyncBinderCards(c *gin.Context) {
	result, err := h.worker.SyncBinderCards(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
