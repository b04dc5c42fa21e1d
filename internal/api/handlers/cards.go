package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/codyseavey/binder-tracker/backend/internal/services"
)

type CardHandler struct {
	catalog  *services.PokemonTCGService
	resolver *services.CardResolver
	history  *services.PriceHistoryService
}

func NewCardHandler(catalog *services.PokemonTCGService, resolver *services.CardResolver, history *services.PriceHistoryService) *CardHandler {
	return &CardHandler{
		catalog:  catalog,
		resolver: resolver,
		history:  history,
	}
}

func (h *CardHandler) SearchCards(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	pageSize := 0
	if ps := c.Query("page_size"); ps != "" {
		n, err := strconv.Atoi(ps)
		if err != nil || n < 1 || n > 250 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be between 1 and 250"})
			return
		}
		pageSize = n
	}

	result, err := h.catalog.SearchCards(c.Request.Context(), query, pageSize)
	if err != nil {
		log.Printf("Cards: search %q failed: %v", query, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "card search is unavailable"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Autocomplete suggests card names. When the catalog is unreachable the
// built-in list of common names is used instead.
func (h *CardHandler) Autocomplete(c *gin.Context) {
	query := c.Query("q")

	names, err := h.catalog.Autocomplete(c.Request.Context(), query)
	if err != nil {
		log.Printf("Cards: autocomplete %q failed, using fallback names: %v", query, err)
		names = services.FallbackSuggestions(query)
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": names})
}

func (h *CardHandler) GetCard(c *gin.Context) {
	card, err := h.resolver.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// GetCardPrices returns the chart series for a card.
// Query: span=7D|14D|30D|90D|1Y|5Y|10Y|all, stores=eBay,TCGPlayer
func (h *CardHandler) GetCardPrices(c *gin.Context) {
	span, err := services.ParseTimeSpan(c.Query("span"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var stores []string
	for _, s := range strings.Split(c.Query("stores"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			stores = append(stores, s)
		}
	}

	series, err := h.history.Series(c.Request.Context(), c.Param("id"), span, stores, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}
