package models

import (
	"time"
)

type Condition string

const (
	ConditionMint      Condition = "M"
	ConditionNearMint  Condition = "NM"
	ConditionExcellent Condition = "EX"
	ConditionLightPlay Condition = "LP"
	ConditionPlayed    Condition = "PL"
	ConditionPoor      Condition = "PR"
)

type Holding struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CardID     uint      `json:"card_id" gorm:"not null;index"`
	Card       Card      `json:"-" gorm:"foreignKey:CardID"`
	Quantity   int       `json:"quantity" gorm:"default:1"`
	Condition  Condition `json:"condition" gorm:"default:'NM'"`
	IsForTrade bool      `json:"is_for_trade" gorm:"default:false"`
	IsWantlist bool      `json:"is_wantlist" gorm:"default:false"`
	IsWatched  bool      `json:"is_watched" gorm:"default:false"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GradedItem records a third-party grading-service grade for a card.
// At most one per card; upserts by card id replace any prior grader/grade.
type GradedItem struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CardID    uint      `json:"card_id" gorm:"uniqueIndex;not null"`
	Grader    string    `json:"grader" gorm:"not null"`
	Grade     string    `json:"grade" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateHoldingRequest struct {
	CardID     uint      `json:"card_id" binding:"required"`
	Quantity   int       `json:"quantity"`
	Condition  Condition `json:"condition"`
	IsForTrade bool      `json:"is_for_trade"`
	IsWantlist bool      `json:"is_wantlist"`
	IsWatched  bool      `json:"is_watched"`
	Notes      string    `json:"notes"`
}

type UpdateHoldingRequest struct {
	Quantity   *int       `json:"quantity"`
	Condition  *Condition `json:"condition"`
	IsForTrade *bool      `json:"is_for_trade"`
	IsWantlist *bool      `json:"is_wantlist"`
	IsWatched  *bool      `json:"is_watched"`
	Notes      *string    `json:"notes"`
}

// HoldingRow is the holdings list shape: the holding joined with its card and set.
type HoldingRow struct {
	HoldingID  uint        `json:"holding_id"`
	Quantity   int         `json:"quantity"`
	Condition  Condition   `json:"condition"`
	IsForTrade bool        `json:"is_for_trade"`
	IsWantlist bool        `json:"is_wantlist"`
	IsWatched  bool        `json:"is_watched"`
	Notes      string      `json:"notes"`
	Card       CardSummary `json:"card"`
	Set        SetSummary  `json:"set"`
}

type UpsertGradedRequest struct {
	CardID uint   `json:"card_id" binding:"required"`
	Grader string `json:"grader" binding:"required"`
	Grade  string `json:"grade" binding:"required"`
}
