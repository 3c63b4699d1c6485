package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HomeLabTec/pokemon/internal/database"
	"github.com/HomeLabTec/pokemon/internal/models"
	"github.com/HomeLabTec/pokemon/internal/services"
)

type CardHandler struct {
	catalog    *services.CatalogStore
	images     *services.ImageCache
	cardPrices *services.PriceFetcher
	priceStore *services.PriceStore
}

func NewCardHandler(catalog *services.CatalogStore, images *services.ImageCache, cardPrices *services.PriceFetcher, priceStore *services.PriceStore) *CardHandler {
	return &CardHandler{
		catalog:    catalog,
		images:     images,
		cardPrices: cardPrices,
		priceStore: priceStore,
	}
}

func (h *CardHandler) GetSets(c *gin.Context) {
	db := database.GetDB()

	var sets []models.Set
	if err := db.Order("release_date DESC, name").Find(&sets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sets)
}

func (h *CardHandler) SearchCards(c *gin.Context) {
	filter := services.CatalogFilter{
		Query:  c.Query("q"),
		Rarity: c.Query("rarity"),
		Artist: c.Query("artist"),
	}
	if setIDStr := c.Query("set_id"); setIDStr != "" {
		setID, err := strconv.ParseUint(setIDStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid set_id"})
			return
		}
		filter.SetID = uint(setID)
	}

	cards, err := h.catalog.Search(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *CardHandler) GetCard(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	card, err := h.catalog.GetCard(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}

	history, err := h.priceStore.History(c.Request.Context(), models.PriceEntityCard, card.ID, time.Now().AddDate(-1, 0, 0))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := gin.H{
		"card":          card,
		"set":           card.Set.Summary(),
		"price_history": history,
	}
	if quote, ok := h.cardPrices.Quote(card.ID); ok {
		response["price"] = quote
	}
	c.JSON(http.StatusOK, response)
}

// GetCardImage streams the card image through the local cache.
func (h *CardHandler) GetCardImage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	card, err := h.catalog.GetCard(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	if card.ImageURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "card has no image"})
		return
	}

	data, err := h.images.Get(c.Request.Context(), card.ImageURL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch card image"})
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// GetCardPrices returns quotes for a batch of cards. With fetch_remote set
// the upstream source is queried in chunks; otherwise only already-known
// quotes come back. Cards with no known quote are omitted, not zeroed.
func (h *CardHandler) GetCardPrices(c *gin.Context) {
	var req models.CardPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var quotes map[uint]models.PriceQuote
	if req.FetchRemote {
		quotes = h.cardPrices.Refresh(c.Request.Context(), req.CardIDs)
	} else {
		persisted, err := h.priceStore.Latest(c.Request.Context(), models.PriceEntityCard, req.CardIDs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		quotes = persisted
		for id, quote := range h.cardPrices.Snapshot(req.CardIDs) {
			quotes[id] = quote
		}
	}

	rows := make([]models.CardPriceRow, 0, len(quotes))
	for _, id := range req.CardIDs {
		quote, ok := quotes[id]
		if !ok {
			continue
		}
		rows = append(rows, models.CardPriceRow{
			CardID:     id,
			Market:     quote.Market,
			Source:     quote.Source,
			SourceType: quote.SourceType,
		})
	}
	c.JSON(http.StatusOK, gin.H{"prices": rows})
}
