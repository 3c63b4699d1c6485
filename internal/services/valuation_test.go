package services

import (
	"testing"

	"github.com/HomeLabTec/pokemon/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestValuePortfolioGradedPrecedence(t *testing.T) {
	holdings := []models.Holding{
		{ID: 1, CardID: 10, Quantity: 1},
	}
	gradedByCard := map[uint]models.GradedItem{
		10: {ID: 100, CardID: 10, Grader: "PSA", Grade: "9"},
	}
	rawQuotes := map[uint]models.PriceQuote{
		10: {EntityID: 10, Market: fptr(50)},
	}
	gradedQuotes := map[uint]models.PriceQuote{
		100: {EntityID: 100, Market: fptr(400)},
	}

	summary, values := ValuePortfolio(holdings, gradedByCard, rawQuotes, gradedQuotes)

	if summary.TotalValue != 400 {
		t.Errorf("TotalValue = %v, want graded price 400", summary.TotalValue)
	}
	if summary.GradedValue != 400 || summary.RawValue != 0 {
		t.Errorf("GradedValue/RawValue = %v/%v, want 400/0", summary.GradedValue, summary.RawValue)
	}
	if !values[0].Graded {
		t.Error("holding should be valued as graded")
	}
}

func TestValuePortfolioFallsBackToRaw(t *testing.T) {
	holdings := []models.Holding{
		{ID: 1, CardID: 10, Quantity: 3},
	}
	// Graded record exists but the sales source knows no price for it.
	gradedByCard := map[uint]models.GradedItem{
		10: {ID: 100, CardID: 10},
	}
	rawQuotes := map[uint]models.PriceQuote{
		10: {EntityID: 10, Market: fptr(12.5)},
	}

	summary, values := ValuePortfolio(holdings, gradedByCard, rawQuotes, nil)

	if summary.TotalValue != 37.5 {
		t.Errorf("TotalValue = %v, want 3 x 12.5", summary.TotalValue)
	}
	if summary.RawValue != 37.5 {
		t.Errorf("RawValue = %v, want 37.5", summary.RawValue)
	}
	if values[0].Graded {
		t.Error("fallback to raw should not be counted as graded")
	}
}

func TestValuePortfolioUnknownIsNotZero(t *testing.T) {
	holdings := []models.Holding{
		{ID: 1, CardID: 10, Quantity: 2},
		{ID: 2, CardID: 11, Quantity: 1},
	}
	rawQuotes := map[uint]models.PriceQuote{
		10: {EntityID: 10, Market: fptr(20)},
		// Card 11: source answered but knows no price.
		11: {EntityID: 11, Market: nil},
	}

	summary, values := ValuePortfolio(holdings, nil, rawQuotes, nil)

	if summary.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", summary.TotalCount)
	}
	if summary.PricedCount != 1 {
		t.Errorf("PricedCount = %d, want 1; an unknown price must not count as priced", summary.PricedCount)
	}
	if summary.TotalValue != 40 {
		t.Errorf("TotalValue = %v, want 40", summary.TotalValue)
	}
	if values[1].UnitPrice != nil || values[1].Value != nil {
		t.Error("unknown price must surface as nil, not zero")
	}
}

func TestValuePortfolioEmpty(t *testing.T) {
	summary, values := ValuePortfolio(nil, nil, nil, nil)
	if summary.TotalCount != 0 || summary.PricedCount != 0 || summary.TotalValue != 0 {
		t.Errorf("empty portfolio summary = %+v", summary)
	}
	if len(values) != 0 {
		t.Errorf("expected no holding values, got %d", len(values))
	}
}
