package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/codyseavey/binder-tracker/backend/internal/api/handlers"
	"github.com/codyseavey/binder-tracker/backend/internal/config"
	"github.com/codyseavey/binder-tracker/backend/internal/metrics"
	"github.com/codyseavey/binder-tracker/backend/internal/services"
)

// Services bundles everything the HTTP layer talks to
type Services struct {
	Catalog      *services.PokemonTCGService
	Resolver     *services.CardResolver
	PriceHistory *services.PriceHistoryService
	Binders      *services.BinderService
	Valuation    *services.ValuationService
	Snapshots    *services.SnapshotService
	CardSync     *services.CardSyncWorker
}

func SetupRouter(cfg *config.Config, svc Services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), MetricsMiddleware())

	serveFrontend := cfg.FrontendDistPath != "" && dirExists(cfg.FrontendDistPath)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsConfig.AllowCredentials = false
	router.Use(cors.New(corsConfig))

	cardHandler := handlers.NewCardHandler(svc.Catalog, svc.Resolver, svc.PriceHistory)
	binderHandler := handlers.NewBinderHandler(svc.Binders, svc.Valuation, svc.Snapshots)
	syncHandler := handlers.NewSyncHandler(svc.CardSync)

	api := router.Group("/api")
	{
		cards := api.Group("/cards")
		{
			cards.GET("/search", cardHandler.SearchCards)
			cards.GET("/autocomplete", cardHandler.Autocomplete)
			cards.GET("/:id", cardHandler.GetCard)
			cards.GET("/:id/prices", cardHandler.GetCardPrices)
			cards.POST("/:id/refresh", syncHandler.QueueRefresh)
		}

		binders := api.Group("/binders")
		{
			binders.GET("", binderHandler.ListBinders)
			binders.POST("", binderHandler.CreateBinder)
			binders.GET("/public", binderHandler.ListPublicBinders)
			binders.GET("/:id", binderHandler.GetBinder)
			binders.PUT("/:id", binderHandler.UpdateBinder)
			binders.DELETE("/:id", binderHandler.DeleteBinder)
			binders.POST("/:id/visibility", binderHandler.ToggleVisibility)
			binders.POST("/:id/duplicate", binderHandler.DuplicateBinder)
			binders.POST("/:id/cards", binderHandler.AddCard)
			binders.PUT("/:id/cards/:itemId", binderHandler.UpdateCard)
			binders.DELETE("/:id/cards/:itemId", binderHandler.RemoveCard)
			binders.GET("/:id/value", binderHandler.GetValue)
			binders.GET("/:id/history", binderHandler.GetValueHistory)
			binders.POST("/:id/snapshot", binderHandler.TakeSnapshot)
		}

		sync := api.Group("/sync")
		{
			sync.GET("/status", syncHandler.GetSyncStatus)
			sync.POST("/binder-cards", syncHandler.SyncBinderCards)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	if serveFrontend {
		frontendPath := cfg.FrontendDistPath
		indexPath := filepath.Join(frontendPath, "index.html")

		router.Static("/assets", filepath.Join(frontendPath, "assets"))
		router.StaticFile("/vite.svg", filepath.Join(frontendPath, "vite.svg"))

		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
