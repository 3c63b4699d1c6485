package services

import (
	"github.com/HomeLabTec/pokemon/internal/models"
)

// PortfolioSummary is the aggregated value of the collection at one point
// in time.
type PortfolioSummary struct {
	TotalValue  float64 `json:"total_value"`
	RawValue    float64 `json:"raw_value"`
	GradedValue float64 `json:"graded_value"`
	PricedCount int     `json:"priced_count"`
	TotalCount  int     `json:"total_count"`
}

// HoldingValue is the per-holding breakdown behind a summary.
type HoldingValue struct {
	HoldingID uint     `json:"holding_id"`
	CardID    uint     `json:"card_id"`
	Quantity  int      `json:"quantity"`
	UnitPrice *float64 `json:"unit_price"`
	Value     *float64 `json:"value"`
	Graded    bool     `json:"graded"`
}

// ValuePortfolio prices each holding and sums the collection. A graded
// quote, when one exists for the holding's card, takes precedence over the
// raw card quote. Holdings with no known price on either side contribute
// nothing to the totals and are excluded from the priced count; an unknown
// price is never treated as zero.
func ValuePortfolio(holdings []models.Holding, gradedByCard map[uint]models.GradedItem, rawQuotes map[uint]models.PriceQuote, gradedQuotes map[uint]models.PriceQuote) (PortfolioSummary, []HoldingValue) {
	summary := PortfolioSummary{TotalCount: len(holdings)}
	values := make([]HoldingValue, 0, len(holdings))

	for _, h := range holdings {
		hv := HoldingValue{
			HoldingID: h.ID,
			CardID:    h.CardID,
			Quantity:  h.Quantity,
		}

		var unit *float64
		if graded, ok := gradedByCard[h.CardID]; ok {
			hv.Graded = true
			if quote, ok := gradedQuotes[graded.ID]; ok && quote.Market != nil {
				unit = quote.Market
			}
		}
		if unit == nil {
			if quote, ok := rawQuotes[h.CardID]; ok && quote.Market != nil {
				unit = quote.Market
				hv.Graded = false
			}
		}

		if unit != nil {
			hv.UnitPrice = unit
			value := *unit * float64(h.Quantity)
			hv.Value = &value
			summary.TotalValue += value
			if hv.Graded {
				summary.GradedValue += value
			} else {
				summary.RawValue += value
			}
			summary.PricedCount++
		}
		values = append(values, hv)
	}
	return summary, values
}
