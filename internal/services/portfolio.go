package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/HomeLabTec/pokemon/internal/metrics"
	"github.com/HomeLabTec/pokemon/internal/models"
)

// PortfolioService values the whole collection. Quotes come from the
// in-memory fetcher caches first, then from persisted latest prices for
// anything the session has not fetched yet.
type PortfolioService struct {
	db           *gorm.DB
	cardPrices   *PriceFetcher
	gradedPrices *PriceFetcher
	store        *PriceStore
}

func NewPortfolioService(db *gorm.DB, cardPrices, gradedPrices *PriceFetcher, store *PriceStore) *PortfolioService {
	return &PortfolioService{
		db:           db,
		cardPrices:   cardPrices,
		gradedPrices: gradedPrices,
		store:        store,
	}
}

// Value computes the current portfolio summary and per-holding breakdown.
func (p *PortfolioService) Value(ctx context.Context) (PortfolioSummary, []HoldingValue, error) {
	var holdings []models.Holding
	if err := p.db.WithContext(ctx).Where("is_wantlist = ?", false).Find(&holdings).Error; err != nil {
		return PortfolioSummary{}, nil, err
	}

	var gradedItems []models.GradedItem
	if err := p.db.WithContext(ctx).Find(&gradedItems).Error; err != nil {
		return PortfolioSummary{}, nil, err
	}

	cardIDs := make([]uint, 0, len(holdings))
	for _, h := range holdings {
		cardIDs = append(cardIDs, h.CardID)
	}
	gradedByCard := make(map[uint]models.GradedItem, len(gradedItems))
	gradedIDs := make([]uint, 0, len(gradedItems))
	for _, g := range gradedItems {
		gradedByCard[g.CardID] = g
		gradedIDs = append(gradedIDs, g.ID)
	}

	rawQuotes, err := p.quotes(ctx, models.PriceEntityCard, p.cardPrices, cardIDs)
	if err != nil {
		return PortfolioSummary{}, nil, err
	}
	gradedQuotes, err := p.quotes(ctx, models.PriceEntityGraded, p.gradedPrices, gradedIDs)
	if err != nil {
		return PortfolioSummary{}, nil, err
	}

	summary, values := ValuePortfolio(holdings, gradedByCard, rawQuotes, gradedQuotes)

	totalQuantity := 0
	for _, h := range holdings {
		totalQuantity += h.Quantity
	}
	metrics.CollectionCardsTotal.Set(float64(totalQuantity))
	metrics.CollectionValueUSD.Set(summary.TotalValue)
	metrics.CollectionPricedCards.Set(float64(summary.PricedCount))

	return summary, values, nil
}

// quotes merges session-cache quotes over persisted ones.
func (p *PortfolioService) quotes(ctx context.Context, entityType models.PriceEntity, fetcher *PriceFetcher, ids []uint) (map[uint]models.PriceQuote, error) {
	persisted, err := p.store.Latest(ctx, entityType, ids)
	if err != nil {
		return nil, err
	}
	for id, quote := range fetcher.Snapshot(ids) {
		persisted[id] = quote
	}
	return persisted, nil
}
