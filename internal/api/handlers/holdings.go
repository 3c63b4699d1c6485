package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/HomeLabTec/pokemon/internal/database"
	"github.com/HomeLabTec/pokemon/internal/models"
	"github.com/HomeLabTec/pokemon/internal/services"
)

// Maximum quantity allowed per holding
const maxQuantity = 9999

type HoldingHandler struct {
	portfolio *services.PortfolioService
	snapshots *services.SnapshotService
}

func NewHoldingHandler(portfolio *services.PortfolioService, snapshots *services.SnapshotService) *HoldingHandler {
	return &HoldingHandler{
		portfolio: portfolio,
		snapshots: snapshots,
	}
}

func (h *HoldingHandler) GetHoldings(c *gin.Context) {
	db := database.GetDB()

	query := db.Preload("Card").Preload("Card.Set").Order("created_at DESC")
	if c.Query("for_trade") == "true" {
		query = query.Where("is_for_trade = ?", true)
	}
	if c.Query("wantlist") == "true" {
		query = query.Where("is_wantlist = ?", true)
	}
	if c.Query("watched") == "true" {
		query = query.Where("is_watched = ?", true)
	}

	var holdings []models.Holding
	if err := query.Find(&holdings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows := make([]models.HoldingRow, 0, len(holdings))
	for _, holding := range holdings {
		rows = append(rows, models.HoldingRow{
			HoldingID:  holding.ID,
			Quantity:   holding.Quantity,
			Condition:  holding.Condition,
			IsForTrade: holding.IsForTrade,
			IsWantlist: holding.IsWantlist,
			IsWatched:  holding.IsWatched,
			Notes:      holding.Notes,
			Card:       holding.Card.Summary(),
			Set:        holding.Card.Set.Summary(),
		})
	}
	c.JSON(http.StatusOK, rows)
}

func (h *HoldingHandler) CreateHolding(c *gin.Context) {
	var req models.CreateHoldingRequest
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

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
		return
	}
	if quantity > maxQuantity {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity exceeds maximum allowed (9999)"})
		return
	}
	condition := req.Condition
	if condition == "" {
		condition = models.ConditionNearMint
	}

	holding := models.Holding{
		CardID:     req.CardID,
		Quantity:   quantity,
		Condition:  condition,
		IsForTrade: req.IsForTrade,
		IsWantlist: req.IsWantlist,
		IsWatched:  req.IsWatched,
		Notes:      req.Notes,
	}
	if err := db.Create(&holding).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	db.Preload("Card").Preload("Card.Set").First(&holding, holding.ID)
	c.JSON(http.StatusCreated, holding)
}

func (h *HoldingHandler) UpdateHolding(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req models.UpdateHoldingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()

	var holding models.Holding
	if err := db.First(&holding, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "holding not found"})
		return
	}

	if req.Quantity != nil {
		if *req.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
			return
		}
		if *req.Quantity > maxQuantity {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity exceeds maximum allowed (9999)"})
			return
		}
		holding.Quantity = *req.Quantity
	}
	if req.Condition != nil {
		holding.Condition = *req.Condition
	}
	if req.IsForTrade != nil {
		holding.IsForTrade = *req.IsForTrade
	}
	if req.IsWantlist != nil {
		holding.IsWantlist = *req.IsWantlist
	}
	if req.IsWatched != nil {
		holding.IsWatched = *req.IsWatched
	}
	if req.Notes != nil {
		holding.Notes = *req.Notes
	}

	if err := db.Save(&holding).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	db.Preload("Card").Preload("Card.Set").First(&holding, holding.ID)
	c.JSON(http.StatusOK, holding)
}

func (h *HoldingHandler) DeleteHolding(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	db := database.GetDB()

	result := db.Delete(&models.Holding{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "holding not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// GetPortfolio returns the current collection value and per-holding
// breakdown.
func (h *HoldingHandler) GetPortfolio(c *gin.Context) {
	summary, values, err := h.portfolio.Value(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":  summary,
		"holdings": values,
	})
}

// GetValueHistory returns portfolio value snapshots for charting.
func (h *HoldingHandler) GetValueHistory(c *gin.Context) {
	period := c.DefaultQuery("period", "month")

	snapshots, err := h.snapshots.GetHistory(c.Request.Context(), period)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshots": snapshots,
		"period":    period,
	})
}

// TakeSnapshot records a portfolio value snapshot immediately.
func (h *HoldingHandler) TakeSnapshot(c *gin.Context) {
	if err := h.snapshots.TakeSnapshot(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "snapshot recorded"})
}
