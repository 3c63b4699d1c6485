package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/HomeLabTec/pokemon/internal/models"
)

const catalogSearchLimit = 100

// CardSearcher is the catalog query surface the resolver needs.
type CardSearcher interface {
	SearchByName(ctx context.Context, name string) ([]models.Card, error)
}

// CatalogFilter narrows a catalog search; zero fields are ignored and the
// supplied ones combine conjunctively.
type CatalogFilter struct {
	Query  string
	SetID  uint
	Rarity string
	Artist string
}

// CatalogStore queries the local card catalog.
type CatalogStore struct {
	db *gorm.DB
}

func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) SearchByName(ctx context.Context, name string) ([]models.Card, error) {
	return s.Search(ctx, CatalogFilter{Query: name})
}

func (s *CatalogStore) Search(ctx context.Context, filter CatalogFilter) ([]models.Card, error) {
	query := s.db.WithContext(ctx).Model(&models.Card{})
	if filter.Query != "" {
		query = query.Where("name LIKE ?", "%"+filter.Query+"%")
	}
	if filter.SetID != 0 {
		query = query.Where("set_id = ?", filter.SetID)
	}
	if filter.Rarity != "" {
		query = query.Where("rarity = ?", filter.Rarity)
	}
	if filter.Artist != "" {
		query = query.Where("artist = ?", filter.Artist)
	}

	var cards []models.Card
	if err := query.Order("name, number").Limit(catalogSearchLimit).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	return cards, nil
}

func (s *CatalogStore) GetCard(ctx context.Context, id uint) (*models.Card, error) {
	var card models.Card
	if err := s.db.WithContext(ctx).Preload("Set").First(&card, id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// Resolution partitions catalog search results against a recognition guess.
// Strict matches (name and number both equal after normalization) are
// trusted enough to auto-advance the scan workflow; name matches are not.
type Resolution struct {
	Strict []models.Card
	ByName []models.Card
}

type CatalogResolver struct {
	searcher CardSearcher
}

func NewCatalogResolver(searcher CardSearcher) *CatalogResolver {
	return &CatalogResolver{searcher: searcher}
}

func (r *CatalogResolver) Resolve(ctx context.Context, name, number string) (*Resolution, error) {
	results, err := r.searcher.SearchByName(ctx, NormalizeName(name))
	if err != nil {
		return nil, err
	}

	wantName := NormalizeName(name)
	wantNumber := NormalizeNumber(number)

	resolution := &Resolution{}
	for _, card := range results {
		if NormalizeName(card.Name) != wantName {
			continue
		}
		resolution.ByName = append(resolution.ByName, card)
		if NormalizeNumber(card.Number) == wantNumber {
			resolution.Strict = append(resolution.Strict, card)
		}
	}
	return resolution, nil
}
