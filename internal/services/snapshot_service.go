package services

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/HomeLabTec/pokemon/internal/models"
)

// SnapshotService records daily portfolio value snapshots.
type SnapshotService struct {
	db        *gorm.DB
	portfolio *PortfolioService

	mu            sync.Mutex
	snapshotHour  int // Hour of day to take the snapshot (0-23)
	checkInterval time.Duration
}

func NewSnapshotService(db *gorm.DB, portfolio *PortfolioService) *SnapshotService {
	return &SnapshotService{
		db:            db,
		portfolio:     portfolio,
		snapshotHour:  23,
		checkInterval: 15 * time.Minute,
	}
}

// Start begins the background snapshot worker.
func (s *SnapshotService) Start(ctx context.Context) {
	log.Println("Snapshot service started: will record daily portfolio value")

	s.checkAndSnapshot(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Snapshot service stopping...")
			return
		case <-ticker.C:
			s.checkAndSnapshot(ctx)
		}
	}
}

func (s *SnapshotService) checkAndSnapshot(ctx context.Context) {
	now := time.Now()
	if s.hasSnapshotForDate(now) {
		return
	}
	if now.Hour() >= s.snapshotHour {
		if err := s.TakeSnapshot(ctx); err != nil {
			log.Printf("Snapshot service: failed to take snapshot: %v", err)
		}
	}
}

func (s *SnapshotService) hasSnapshotForDate(date time.Time) bool {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	var count int64
	s.db.Model(&models.PortfolioSnapshot{}).
		Where("ts >= ? AND ts < ?", startOfDay, endOfDay).
		Count(&count)
	return count > 0
}

// TakeSnapshot records the current portfolio value.
func (s *SnapshotService) TakeSnapshot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, _, err := s.portfolio.Value(ctx)
	if err != nil {
		return err
	}

	snapshot := models.PortfolioSnapshot{
		TS:          time.Now(),
		TotalValue:  summary.TotalValue,
		RawValue:    summary.RawValue,
		GradedValue: summary.GradedValue,
		PricedCount: summary.PricedCount,
		TotalCount:  summary.TotalCount,
	}
	if err := s.db.WithContext(ctx).Create(&snapshot).Error; err != nil {
		return err
	}

	log.Printf("Snapshot service: recorded portfolio value %.2f (%d/%d priced)",
		summary.TotalValue, summary.PricedCount, summary.TotalCount)
	return nil
}

// GetHistory retrieves snapshots for a given period, oldest first.
func (s *SnapshotService) GetHistory(ctx context.Context, period string) ([]models.PortfolioSnapshot, error) {
	now := time.Now()
	var startDate time.Time

	switch period {
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "month":
		startDate = now.AddDate(0, -1, 0)
	case "3month":
		startDate = now.AddDate(0, -3, 0)
	case "year":
		startDate = now.AddDate(-1, 0, 0)
	case "all":
		startDate = time.Time{}
	default:
		startDate = now.AddDate(0, -1, 0)
	}

	query := s.db.WithContext(ctx).Order("ts ASC")
	if !startDate.IsZero() {
		query = query.Where("ts >= ?", startDate)
	}

	var snapshots []models.PortfolioSnapshot
	if err := query.Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}
