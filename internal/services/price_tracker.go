package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/HomeLabTec/pokemon/internal/metrics"
	"github.com/HomeLabTec/pokemon/internal/models"
)

const (
	priceTrackerBaseURL        = "https://www.pokemonpricetracker.com/api/v2"
	priceTrackerDefaultTimeout = 30 * time.Second
	priceTrackerDefaultLimit   = 200

	sourceRawDefault    = "pokemonpricetracker"
	sourceGradedDefault = "pokemonpricetracker_ebay"
)

// PriceTrackerService is the client for the upstream market-price source.
// It paces requests and enforces a daily quota so batch refreshes cannot
// burn through the plan.
type PriceTrackerService struct {
	client  *http.Client
	limiter *rate.Limiter
	apiKey  string
	baseURL string

	dailyLimit int

	mu             sync.Mutex
	requestsToday  int
	lastRequestDay time.Time
}

func NewPriceTrackerService(apiKey string, dailyLimit int) *PriceTrackerService {
	if dailyLimit <= 0 {
		dailyLimit = priceTrackerDefaultLimit
	}
	return &PriceTrackerService{
		client: &http.Client{
			Timeout: priceTrackerDefaultTimeout,
		},
		// Upstream allows ~5 req/s; stay comfortably under it.
		limiter:    rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
		apiKey:     apiKey,
		baseURL:    priceTrackerBaseURL,
		dailyLimit: dailyLimit,
	}
}

// SetBaseURL overrides the upstream endpoint (tests, staging).
func (s *PriceTrackerService) SetBaseURL(url string) {
	s.baseURL = url
}

// CardQuoteRequest identifies one card to the upstream source. RefID is
// echoed back so responses can be keyed locally.
type CardQuoteRequest struct {
	RefID   uint   `json:"ref_id"`
	SetCode string `json:"set"`
	Number  string `json:"number"`
	Name    string `json:"name"`
}

// GradedQuoteRequest identifies one graded card and grade to the upstream
// sales source.
type GradedQuoteRequest struct {
	RefID   uint   `json:"ref_id"`
	SetCode string `json:"set"`
	Number  string `json:"number"`
	Name    string `json:"name"`
	Grader  string `json:"grader"`
	Grade   string `json:"grade"`
}

type priceTrackerQuote struct {
	RefID      uint     `json:"ref_id"`
	Market     *float64 `json:"market"`
	Source     string   `json:"source"`
	SourceType string   `json:"source_type"`
}

type priceTrackerResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Prices  []priceTrackerQuote `json:"prices"`
}

// checkDailyLimit reports whether another request may run today and counts
// it if so.
func (s *PriceTrackerService) checkDailyLimit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if s.lastRequestDay.Before(today) {
		s.requestsToday = 0
		s.lastRequestDay = today
	}

	if s.requestsToday >= s.dailyLimit {
		return false
	}
	s.requestsToday++
	return true
}

// GetRequestsRemaining returns the number of requests remaining today.
func (s *PriceTrackerService) GetRequestsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if s.lastRequestDay.Before(today) {
		return s.dailyLimit
	}
	remaining := s.dailyLimit - s.requestsToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *PriceTrackerService) GetDailyLimit() int {
	return s.dailyLimit
}

// GetResetTime returns the next daily quota reset (midnight local time).
func (s *PriceTrackerService) GetResetTime() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
}

// BatchCardQuotes fetches raw market quotes for one chunk of cards.
func (s *PriceTrackerService) BatchCardQuotes(ctx context.Context, reqs []CardQuoteRequest) (map[uint]models.PriceQuote, error) {
	payload := struct {
		Cards []CardQuoteRequest `json:"cards"`
	}{Cards: reqs}

	resp, err := s.post(ctx, "/prices/cards", payload)
	if err != nil {
		return nil, err
	}
	return s.toQuotes(resp.Prices, sourceRawDefault, "tcgplayer"), nil
}

// BatchGradedQuotes fetches graded market quotes for one chunk of graded
// records.
func (s *PriceTrackerService) BatchGradedQuotes(ctx context.Context, reqs []GradedQuoteRequest) (map[uint]models.PriceQuote, error) {
	payload := struct {
		Items []GradedQuoteRequest `json:"items"`
	}{Items: reqs}

	resp, err := s.post(ctx, "/prices/graded", payload)
	if err != nil {
		return nil, err
	}
	return s.toQuotes(resp.Prices, sourceGradedDefault, "ebay_sales"), nil
}

// GradedSaleQuote fetches the recent-sales value of a single graded card.
// Callers must pass the cooldown guard first.
func (s *PriceTrackerService) GradedSaleQuote(ctx context.Context, req GradedQuoteRequest) (*models.PriceQuote, error) {
	payload := struct {
		Items []GradedQuoteRequest `json:"items"`
	}{Items: []GradedQuoteRequest{req}}

	resp, err := s.post(ctx, "/prices/graded", payload)
	if err != nil {
		return nil, err
	}
	quotes := s.toQuotes(resp.Prices, sourceGradedDefault, "ebay_sales")
	quote, ok := quotes[req.RefID]
	if !ok {
		// The source answered but knows nothing about this grade.
		quote = models.PriceQuote{
			EntityID:   req.RefID,
			Source:     sourceGradedDefault,
			SourceType: "ebay_sales",
			FetchedAt:  time.Now(),
		}
	}
	return &quote, nil
}

func (s *PriceTrackerService) post(ctx context.Context, path string, payload any) (*priceTrackerResponse, error) {
	if !s.checkDailyLimit() {
		return nil, fmt.Errorf("price tracker daily quota exceeded")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	metrics.PriceTrackerRequestsTotal.Inc()
	metrics.PriceTrackerQuotaLimit.Set(float64(s.dailyLimit))
	metrics.PriceTrackerQuotaRemaining.Set(float64(s.GetRequestsRemaining()))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach price tracker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price tracker API error: status %d", resp.StatusCode)
	}

	var decoded priceTrackerResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !decoded.Success {
		if decoded.Error != "" {
			return nil, fmt.Errorf("price tracker API error: %s", decoded.Error)
		}
		return nil, fmt.Errorf("price tracker API returned unsuccessful response")
	}
	return &decoded, nil
}

func (s *PriceTrackerService) toQuotes(prices []priceTrackerQuote, defaultSource, defaultType string) map[uint]models.PriceQuote {
	now := time.Now()
	out := make(map[uint]models.PriceQuote, len(prices))
	for _, p := range prices {
		source := p.Source
		if source == "" {
			source = defaultSource
		}
		sourceType := p.SourceType
		if sourceType == "" {
			sourceType = defaultType
		}
		out[p.RefID] = models.PriceQuote{
			EntityID:   p.RefID,
			Market:     p.Market,
			Source:     source,
			SourceType: sourceType,
			FetchedAt:  now,
		}
	}
	return out
}
