package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HomeLabTec/pokemon/internal/database"
	"github.com/HomeLabTec/pokemon/internal/models"
	"github.com/HomeLabTec/pokemon/internal/services"
)

type GradedHandler struct {
	tracker      *services.PriceTrackerService
	gradedPrices *services.PriceFetcher
	cooldown     *services.CooldownGuard
	priceStore   *services.PriceStore
}

func NewGradedHandler(tracker *services.PriceTrackerService, gradedPrices *services.PriceFetcher, cooldown *services.CooldownGuard, priceStore *services.PriceStore) *GradedHandler {
	return &GradedHandler{
		tracker:      tracker,
		gradedPrices: gradedPrices,
		cooldown:     cooldown,
		priceStore:   priceStore,
	}
}

func (h *GradedHandler) GetGraded(c *gin.Context) {
	db := database.GetDB()

	var items []models.GradedItem
	if err := db.Order("updated_at DESC").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}

// UpsertGraded records or replaces the grade for a card. One grade per
// card; a new submission overwrites the prior grader and grade.
func (h *GradedHandler) UpsertGraded(c *gin.Context) {
	var req models.UpsertGradedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()

	var card models.Card
	if err := db.First(&card, req.CardID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card not found"})
		return
	}

	item := models.GradedItem{
		CardID: req.CardID,
		Grader: req.Grader,
		Grade:  req.Grade,
	}
	result := db.Where("card_id = ?", req.CardID).
		Assign(models.GradedItem{Grader: req.Grader, Grade: req.Grade}).
		FirstOrCreate(&item)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *GradedHandler) DeleteGraded(c *gin.Context) {
	cardID := c.Param("card_id")

	db := database.GetDB()

	result := db.Where("card_id = ?", cardID).Delete(&models.GradedItem{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "graded record not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// GetGradedPrices returns quotes for a batch of graded records, optionally
// refreshing them from the upstream sales source.
func (h *GradedHandler) GetGradedPrices(c *gin.Context) {
	var req models.GradedPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var quotes map[uint]models.PriceQuote
	if req.FetchRemote {
		quotes = h.gradedPrices.Refresh(c.Request.Context(), req.GradedIDs)
	} else {
		persisted, err := h.priceStore.Latest(c.Request.Context(), models.PriceEntityGraded, req.GradedIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		quotes = persisted
		for id, quote := range h.gradedPrices.Snapshot(req.GradedIDs) {
			quotes[id] = quote
		}
	}

	rows := make([]models.GradedPriceRow, 0, len(quotes))
	for _, id := range req.GradedIDs {
		quote, ok := quotes[id]
		if !ok {
			continue
		}
		rows = append(rows, models.GradedPriceRow{
			GradedID:   id,
			Market:     quote.Market,
			Source:     quote.Source,
			SourceType: quote.SourceType,
		})
	}
	c.JSON(http.StatusOK, gin.H{"prices": rows})
}

// FetchGradedPrice runs one remote graded-price lookup for a card. The
// per-card cooldown arms on admission and stays armed whether the lookup
// succeeds or fails, so a failed fetch cannot be retried immediately.
func (h *GradedHandler) FetchGradedPrice(c *gin.Context) {
	var req models.FetchGradedPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()

	var card models.Card
	if err := db.Preload("Set").First(&card, req.CardID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card not found"})
		return
	}

	// The graded record is upserted from the request so a price can be
	// looked up before the grade has been saved separately.
	item := models.GradedItem{
		CardID: req.CardID,
		Grader: req.Grader,
		Grade:  req.Grade,
	}
	result := db.Where("card_id = ?", req.CardID).
		Assign(models.GradedItem{Grader: req.Grader, Grade: req.Grade}).
		FirstOrCreate(&item)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}

	if err := h.cooldown.Begin(req.CardID); err != nil {
		if errors.Is(err, services.ErrRateLimited) {
			retryAfter := h.cooldown.RetryAfter(req.CardID)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "graded price recently fetched, try again later",
				"retry_after": int(retryAfter / time.Second),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.tracker.GradedSaleQuote(c.Request.Context(), services.GradedQuoteRequest{
		RefID:   item.ID,
		SetCode: card.Set.Code,
		Number:  card.Number,
		Name:    card.Name,
		Grader:  req.Grader,
		Grade:   req.Grade,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	h.gradedPrices.Put(item.ID, *quote)
	saveErr := h.priceStore.SaveQuotes(context.Background(), models.PriceEntityGraded,
		map[uint]models.PriceQuote{item.ID: *quote})
	if saveErr != nil {
		log.Printf("Graded handler: failed to persist quote for graded %d: %v", item.ID, saveErr)
	}

	c.JSON(http.StatusOK, models.GradedPriceRow{
		GradedID:   item.ID,
		Market:     quote.Market,
		Source:     quote.Source,
		SourceType: quote.SourceType,
	})
}
