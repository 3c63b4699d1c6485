package models

import (
	"time"
)

type Set struct {
	ID          uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Code        string     `json:"code" gorm:"uniqueIndex;not null"`
	Name        string     `json:"name" gorm:"not null"`
	Series      string     `json:"series"`
	ReleaseDate *time.Time `json:"release_date"`
	TotalCards  int        `json:"total_cards"`
}

type Card struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SetID     uint      `json:"set_id" gorm:"not null;index"`
	Set       Set       `json:"-" gorm:"foreignKey:SetID"`
	Number    string    `json:"number" gorm:"not null"`
	Name      string    `json:"name" gorm:"not null;index"`
	Rarity    string    `json:"rarity"`
	Supertype string    `json:"supertype"`
	Subtypes  []string  `json:"subtypes" gorm:"serializer:json"`
	Types     []string  `json:"types" gorm:"serializer:json"`
	HP        string    `json:"hp"`
	Artist    string    `json:"artist"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

// CardSummary is the compact card shape embedded in holding rows.
type CardSummary struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
	Rarity string `json:"rarity"`
}

type SetSummary struct {
	ID   uint   `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

func (c Card) Summary() CardSummary {
	return CardSummary{ID: c.ID, Name: c.Name, Number: c.Number, Rarity: c.Rarity}
}

func (s Set) Summary() SetSummary {
	return SetSummary{ID: s.ID, Code: s.Code, Name: s.Name}
}
