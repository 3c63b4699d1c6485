package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/HomeLabTec/pokemon/internal/models"
)

// PriceStore persists quotes so values survive restarts and accumulate a
// history for charts. The in-memory fetcher caches stay authoritative for
// the current session; this is the durable layer behind them.
type PriceStore struct {
	db *gorm.DB
}

func NewPriceStore(db *gorm.DB) *PriceStore {
	return &PriceStore{db: db}
}

// SaveQuotes upserts the latest price per entity and appends one history
// row per quote.
func (s *PriceStore) SaveQuotes(ctx context.Context, entityType models.PriceEntity, quotes map[uint]models.PriceQuote) error {
	db := s.db.WithContext(ctx)
	for id, quote := range quotes {
		latest := models.LatestPrice{
			EntityType: entityType,
			EntityID:   id,
			Market:     quote.Market,
			Source:     quote.Source,
			SourceType: quote.SourceType,
		}
		result := db.Where("entity_type = ? AND entity_id = ?", entityType, id).
			Assign(models.LatestPrice{
				Market:     quote.Market,
				Source:     quote.Source,
				SourceType: quote.SourceType,
			}).
			FirstOrCreate(&latest)
		if result.Error != nil {
			return result.Error
		}

		history := models.PriceHistory{
			EntityType: entityType,
			EntityID:   id,
			TS:         quote.FetchedAt,
			Market:     quote.Market,
			Source:     quote.Source,
		}
		if err := db.Create(&history).Error; err != nil {
			return err
		}
	}
	return nil
}

// Latest loads the persisted quotes for the given ids. Ids with no stored
// price are absent from the result.
func (s *PriceStore) Latest(ctx context.Context, entityType models.PriceEntity, ids []uint) (map[uint]models.PriceQuote, error) {
	if len(ids) == 0 {
		return map[uint]models.PriceQuote{}, nil
	}

	var rows []models.LatestPrice
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id IN ?", entityType, ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[uint]models.PriceQuote, len(rows))
	for _, row := range rows {
		out[row.EntityID] = models.PriceQuote{
			EntityID:   row.EntityID,
			Market:     row.Market,
			Source:     row.Source,
			SourceType: row.SourceType,
			FetchedAt:  row.UpdatedAt,
		}
	}
	return out, nil
}

// History returns the stored quotes for one entity since the given time,
// oldest first.
func (s *PriceStore) History(ctx context.Context, entityType models.PriceEntity, id uint, since time.Time) ([]models.PriceHistory, error) {
	var rows []models.PriceHistory
	query := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, id).
		Order("ts ASC")
	if !since.IsZero() {
		query = query.Where("ts >= ?", since)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
