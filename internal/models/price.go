package models

import (
	"time"
)

type PriceEntity string

const (
	PriceEntityCard   PriceEntity = "card"
	PriceEntityGraded PriceEntity = "graded"
)

// PriceQuote is an ephemeral market quote held in the in-memory session
// cache. A nil Market means the source answered but knows no price, which
// is distinct from a quote being absent entirely.
type PriceQuote struct {
	EntityID   uint      `json:"entity_id"`
	Market     *float64  `json:"market"`
	Source     string    `json:"source"`
	SourceType string    `json:"source_type"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// LatestPrice is the persisted most-recent quote per entity.
type LatestPrice struct {
	ID         uint        `json:"id" gorm:"primaryKey;autoIncrement"`
	EntityType PriceEntity `json:"entity_type" gorm:"not null;uniqueIndex:uq_latest_price"`
	EntityID   uint        `json:"entity_id" gorm:"not null;uniqueIndex:uq_latest_price"`
	Market     *float64    `json:"market"`
	Source     string      `json:"source"`
	SourceType string      `json:"source_type"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type PriceHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey;autoIncrement"`
	EntityType PriceEntity `json:"entity_type" gorm:"not null;index:idx_price_history_entity"`
	EntityID   uint        `json:"entity_id" gorm:"not null;index:idx_price_history_entity"`
	TS         time.Time   `json:"ts" gorm:"index"`
	Market     *float64    `json:"market"`
	Source     string      `json:"source"`
}

type PortfolioSnapshot struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	TS          time.Time `json:"ts" gorm:"index"`
	TotalValue  float64   `json:"total_value"`
	RawValue    float64   `json:"raw_value"`
	GradedValue float64   `json:"graded_value"`
	PricedCount int       `json:"priced_count"`
	TotalCount  int       `json:"total_count"`
}

type CardPricesRequest struct {
	CardIDs     []uint `json:"card_ids" binding:"required"`
	FetchRemote bool   `json:"fetch_remote"`
}

type GradedPricesRequest struct {
	GradedIDs   []uint `json:"graded_ids" binding:"required"`
	FetchRemote bool   `json:"fetch_remote"`
}

type CardPriceRow struct {
	CardID     uint     `json:"card_id"`
	Market     *float64 `json:"market"`
	Source     string   `json:"source"`
	SourceType string   `json:"source_type"`
}

type GradedPriceRow struct {
	GradedID   uint     `json:"graded_id"`
	Market     *float64 `json:"market"`
	Source     string   `json:"source"`
	SourceType string   `json:"source_type"`
}

type FetchGradedPriceRequest struct {
	CardID uint   `json:"card_id" binding:"required"`
	Grader string `json:"grader" binding:"required"`
	Grade  string `json:"grade" binding:"required"`
}
