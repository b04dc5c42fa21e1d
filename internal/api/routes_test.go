package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/binder-tracker/backend/internal/config"
	"github.com/codyseavey/binder-tracker/backend/internal/database"
	"github.com/codyseavey/binder-tracker/backend/internal/models"
	"github.com/codyseavey/binder-tracker/backend/internal/services"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cards/base1-4":
			fmt.Fprint(w, `{"data":{"id":"base1-4","name":"Charizard","number":"4",
				"set":{"id":"base1","name":"Base","printedTotal":102},
				"cardmarket":{"prices":{"averageSellPrice":300}}}}`)
		case r.URL.Path == "/cards" && r.URL.Query().Get("select") == "name":
			w.WriteHeader(http.StatusServiceUnavailable)
		case r.URL.Path == "/cards":
			fmt.Fprint(w, `{"data":[{"id":"base1-4","name":"Charizard"}],"totalCount":1}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(catalogServer.Close)

	db := database.OpenTestDB(t)
	catalog := services.NewPokemonTCGService(services.PokemonTCGOptions{BaseURL: catalogServer.URL})
	policy := services.DefaultRetryPolicy()
	policy.BaseDelay = 0
	resolver := services.NewCardResolver(services.NewCardStore(db), catalog, policy, 5)
	binders := services.NewBinderService(db)
	valuation := services.NewValuationService(resolver, binders)

	cfg := &config.Config{CORSAllowedOrigins: []string{"http://localhost:5173"}}
	return SetupRouter(cfg, Services{
		Catalog:      catalog,
		Resolver:     resolver,
		PriceHistory: services.NewPriceHistoryService(resolver, 1),
		Binders:      binders,
		Valuation:    valuation,
		Snapshots:    services.NewSnapshotService(db, binders, valuation, 23),
		CardSync:     services.NewCardSyncWorker(resolver, binders, services.CardSyncOptions{}),
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetCard(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/cards/base1-4", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var card models.Card
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
	assert.Equal(t, "Charizard", card.Name)
	assert.Equal(t, "4/102", card.CardNumber)

	w = doJSON(t, router, http.MethodGet, "/api/cards/nope-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchRequiresQuery(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/cards/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/cards/search?q=char", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAutocompleteFallsBack(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/cards/autocomplete?q=pika", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Pikachu"}, resp.Suggestions)
}

func TestCardPrices(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/cards/base1-4/prices?span=90D&stores=eBay", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var series models.PriceSeries
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))
	assert.Equal(t, 90, series.SpanDays)
	assert.Equal(t, []string{"eBay"}, series.Sources)
	assert.NotEmpty(t, series.Rows)
	assert.NotNil(t, series.Stats)

	w = doJSON(t, router, http.MethodGet, "/api/cards/base1-4/prices?span=12D", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBinderFlow(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/binders", models.CreateBinderRequest{OwnerID: "u1", Name: "Vintage"})
	require.Equal(t, http.StatusCreated, w.Code)
	var binder models.Binder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &binder))

	cardsPath := "/api/binders/" + binder.ID + "/cards"
	w = doJSON(t, router, http.MethodPost, cardsPath, map[string]any{"card_id": "base1-4", "quantity": 2, "condition": "Near Mint"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Adding the same card again is a no-op
	w = doJSON(t, router, http.MethodPost, cardsPath, map[string]any{"card_id": "base1-4"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, cardsPath, map[string]any{"card_id": "nope-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/binders/"+binder.ID+"?sort=price-high", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var detail models.BinderDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.Len(t, detail.Cards, 2)
	assert.Equal(t, "Charizard", detail.Cards[0].Card.Name)
	assert.Equal(t, models.UnknownCardName, detail.Cards[1].Card.Name)
	assert.InDelta(t, 600.0, detail.Valuation.TotalValue, 0.001)
	assert.Equal(t, 1, detail.Valuation.UnresolvedCards)

	w = doJSON(t, router, http.MethodPost, "/api/binders/"+binder.ID+"/visibility", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/binders/public", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), binder.ID))

	w = doJSON(t, router, http.MethodGet, "/api/binders/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	doJSON(t, router, http.MethodGet, "/health", nil)
	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "binder_http_requests_total")
}

func TestListPublicBindersRejectsBadLimit(t *testing.T) {
	router := setupTestRouter(t)

	for _, limit := range []string{"abc", "0", "-3", "201"} {
		w := doJSON(t, router, http.MethodGet, "/api/binders/public?limit="+limit, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}

	w := doJSON(t, router, http.MethodGet, "/api/binders/public?limit=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAddCardUnknownConditionListsAccepted(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/binders", models.CreateBinderRequest{OwnerID: "u1", Name: "Modern"})
	require.Equal(t, http.StatusCreated, w.Code)
	var binder models.Binder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &binder))

	w = doJSON(t, router, http.MethodPost, "/api/binders/"+binder.ID+"/cards", map[string]any{"card_id": "base1-4", "condition": "Shiny"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Conditions []string `json:"conditions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Conditions, "Near Mint")
	assert.Len(t, body.Conditions, len(models.AllConditions()))
}

func TestValueHistoryIncludesLatestSnapshot(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/binders", models.CreateBinderRequest{OwnerID: "u1", Name: "Vintage"})
	require.Equal(t, http.StatusCreated, w.Code)
	var binder models.Binder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &binder))

	w = doJSON(t, router, http.MethodGet, "/api/binders/"+binder.ID+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history models.ValueHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Nil(t, history.Latest)

	w = doJSON(t, router, http.MethodPost, "/api/binders/"+binder.ID+"/cards", map[string]any{"card_id": "base1-4"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, router, http.MethodPost, "/api/binders/"+binder.ID+"/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/binders/"+binder.ID+"/history?period=week", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history = models.ValueHistoryResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.NotNil(t, history.Latest)
	assert.Equal(t, binder.ID, history.Latest.BinderID)
	assert.InDelta(t, 300.0, history.Latest.TotalValue, 0.001)
	assert.Len(t, history.Snapshots, 1)
}
