package api

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HomeLabTec/pokemon/internal/api/handlers"
	"github.com/HomeLabTec/pokemon/internal/metrics"
	"github.com/HomeLabTec/pokemon/internal/services"
)

// Services bundles everything the router needs.
type Services struct {
	Catalog      *services.CatalogStore
	Images       *services.ImageCache
	Scans        *services.ScanManager
	Tracker      *services.PriceTrackerService
	CardPrices   *services.PriceFetcher
	GradedPrices *services.PriceFetcher
	Cooldown     *services.CooldownGuard
	PriceStore   *services.PriceStore
	Portfolio    *services.PortfolioService
	Snapshots    *services.SnapshotService
}

func SetupRouter(svc Services) *gin.Engine {
	router := gin.Default()

	// CORS configuration - allow origins from environment or use defaults
	config := cors.DefaultConfig()
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	router.Use(requestMetrics())

	cardHandler := handlers.NewCardHandler(svc.Catalog, svc.Images, svc.CardPrices, svc.PriceStore)
	holdingHandler := handlers.NewHoldingHandler(svc.Portfolio, svc.Snapshots)
	gradedHandler := handlers.NewGradedHandler(svc.Tracker, svc.GradedPrices, svc.Cooldown, svc.PriceStore)
	scanHandler := handlers.NewScanHandler(svc.Scans)

	api := router.Group("/api")
	{
		api.GET("/sets", cardHandler.GetSets)

		cards := api.Group("/cards")
		{
			cards.GET("/search", cardHandler.SearchCards)
			cards.GET("/:id", cardHandler.GetCard)
			cards.GET("/:id/image", cardHandler.GetCardImage)
			cards.POST("/prices", cardHandler.GetCardPrices)
		}

		holdings := api.Group("/holdings")
		{
			holdings.GET("", holdingHandler.GetHoldings)
			holdings.POST("", holdingHandler.CreateHolding)
			holdings.PUT("/:id", holdingHandler.UpdateHolding)
			holdings.PATCH("/:id", holdingHandler.UpdateHolding)
			holdings.DELETE("/:id", holdingHandler.DeleteHolding)
			holdings.GET("/portfolio", holdingHandler.GetPortfolio)
			holdings.GET("/portfolio/history", holdingHandler.GetValueHistory)
			holdings.POST("/portfolio/snapshot", holdingHandler.TakeSnapshot)
		}

		graded := api.Group("/graded")
		{
			graded.GET("", gradedHandler.GetGraded)
			graded.POST("/upsert", gradedHandler.UpsertGraded)
			graded.DELETE("/:card_id", gradedHandler.DeleteGraded)
			graded.POST("/prices", gradedHandler.GetGradedPrices)
			graded.POST("/fetch-price", gradedHandler.FetchGradedPrice)
		}

		scan := api.Group("/scan/sessions")
		{
			scan.POST("", scanHandler.CreateSession)
			scan.GET("/:id", scanHandler.GetState)
			scan.POST("/:id/photo", scanHandler.SubmitPhoto)
			scan.POST("/:id/search", scanHandler.ManualSearch)
			scan.POST("/:id/select", scanHandler.SelectCandidate)
			scan.POST("/:id/confirm", scanHandler.Confirm)
			scan.POST("/:id/reset", scanHandler.Reset)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// requestMetrics records request counts and latency per route.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path,
		).Observe(time.Since(start).Seconds())
	}
}
