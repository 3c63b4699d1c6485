package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/HomeLabTec/pokemon/internal/api"
	"github.com/HomeLabTec/pokemon/internal/database"
	"github.com/HomeLabTec/pokemon/internal/models"
	"github.com/HomeLabTec/pokemon/internal/services"
)

func main() {
	// Database path
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./pokevault.db"
	}

	if err := database.Initialize(dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db := database.GetDB()

	// Card recognition service
	identifyURL := os.Getenv("CARD_ID_SERVER_URL")
	if identifyURL == "" {
		identifyURL = "http://localhost:8000"
	}
	identifier := services.NewCardIdentifierClient(identifyURL)

	// Catalog and scan workflow
	catalog := services.NewCatalogStore(db)
	resolver := services.NewCatalogResolver(catalog)
	scans := services.NewScanManager(identifier, resolver)

	// Price tracker API client
	trackerAPIKey := os.Getenv("PRICETRACKER_API_KEY")
	trackerDailyLimit := 0
	if limitStr := os.Getenv("PRICETRACKER_DAILY_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			trackerDailyLimit = limit
		}
	}
	tracker := services.NewPriceTrackerService(trackerAPIKey, trackerDailyLimit)

	priceStore := services.NewPriceStore(db)
	cardPrices := services.NewPriceFetcher("cards", cardQuoteFetch(tracker, priceStore))
	gradedPrices := services.NewPriceFetcher("graded", gradedQuoteFetch(tracker, priceStore))
	cooldown := services.NewCooldownGuard(services.GradedFetchCooldown)

	portfolio := services.NewPortfolioService(db, cardPrices, gradedPrices, priceStore)
	snapshots := services.NewSnapshotService(db, portfolio)

	// Card image cache
	imageCacheDir := os.Getenv("IMAGE_CACHE_DIR")
	if imageCacheDir == "" {
		imageCacheDir = "./image_cache"
	}
	images, err := services.NewImageCache(imageCacheDir)
	if err != nil {
		log.Fatalf("Failed to initialize image cache: %v", err)
	}

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go snapshots.Start(ctx)

	router := api.SetupRouter(api.Services{
		Catalog:      catalog,
		Images:       images,
		Scans:        scans,
		Tracker:      tracker,
		CardPrices:   cardPrices,
		GradedPrices: gradedPrices,
		Cooldown:     cooldown,
		PriceStore:   priceStore,
		Portfolio:    portfolio,
		Snapshots:    snapshots,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// cardQuoteFetch maps card ids to an upstream batch request and persists
// whatever comes back.
func cardQuoteFetch(tracker *services.PriceTrackerService, store *services.PriceStore) services.QuoteFetchFunc {
	return func(ctx context.Context, ids []uint) (map[uint]models.PriceQuote, error) {
		var cards []models.Card
		if err := database.GetDB().WithContext(ctx).Preload("Set").Where("id IN ?", ids).Find(&cards).Error; err != nil {
			return nil, err
		}

		reqs := make([]services.CardQuoteRequest, 0, len(cards))
		for _, card := range cards {
			reqs = append(reqs, services.CardQuoteRequest{
				RefID:   card.ID,
				SetCode: card.Set.Code,
				Number:  card.Number,
				Name:    card.Name,
			})
		}
		if len(reqs) == 0 {
			return map[uint]models.PriceQuote{}, nil
		}

		quotes, err := tracker.BatchCardQuotes(ctx, reqs)
		if err != nil {
			return nil, err
		}
		if err := store.SaveQuotes(ctx, models.PriceEntityCard, quotes); err != nil {
			log.Printf("Failed to persist card quotes: %v", err)
		}
		return quotes, nil
	}
}

// gradedQuoteFetch maps graded-record ids to an upstream batch request and
// persists whatever comes back.
func gradedQuoteFetch(tracker *services.PriceTrackerService, store *services.PriceStore) services.QuoteFetchFunc {
	return func(ctx context.Context, ids []uint) (map[uint]models.PriceQuote, error) {
		var items []models.GradedItem
		if err := database.GetDB().WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
			return nil, err
		}

		reqs := make([]services.GradedQuoteRequest, 0, len(items))
		for _, item := range items {
			var card models.Card
			if err := database.GetDB().WithContext(ctx).Preload("Set").First(&card, item.CardID).Error; err != nil {
				continue
			}
			reqs = append(reqs, services.GradedQuoteRequest{
				RefID:   item.ID,
				SetCode: card.Set.Code,
				Number:  card.Number,
				Name:    card.Name,
				Grader:  item.Grader,
				Grade:   item.Grade,
			})
		}
		if len(reqs) == 0 {
			return map[uint]models.PriceQuote{}, nil
		}

		quotes, err := tracker.BatchGradedQuotes(ctx, reqs)
		if err != nil {
			return nil, err
		}
		if err := store.SaveQuotes(ctx, models.PriceEntityGraded, quotes); err != nil {
			log.Printf("Failed to persist graded quotes: %v", err)
		}
		return quotes, nil
	}
}
