package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/HomeLabTec/pokemon/internal/metrics"
	"github.com/HomeLabTec/pokemon/internal/models"
)

// priceBatchSize is the number of ids per upstream query.
const priceBatchSize = 50

// QuoteFetchFunc fetches quotes for one chunk of ids from the upstream
// price source.
type QuoteFetchFunc func(ctx context.Context, ids []uint) (map[uint]models.PriceQuote, error)

// PriceFetcher batches quote requests and merges partial, possibly-stale
// results into an owned in-memory map. Two instances run side by side: raw
// card quotes keyed by card id and graded quotes keyed by graded-record id.
type PriceFetcher struct {
	name      string
	fetch     QuoteFetchFunc
	batchSize int

	mu     sync.RWMutex
	quotes map[uint]models.PriceQuote
}

func NewPriceFetcher(name string, fetch QuoteFetchFunc) *PriceFetcher {
	return &PriceFetcher{
		name:      name,
		fetch:     fetch,
		batchSize: priceBatchSize,
		quotes:    make(map[uint]models.PriceQuote),
	}
}

// Refresh queries the requested ids in fixed-size chunks, one upstream call
// at a time. A failing chunk is skipped, so its ids simply stay absent, and
// the remaining chunks still run. Merged entries overwrite prior ones;
// staleness is tolerated, last writer wins. Returns the known quotes for
// the requested ids after the refresh.
func (f *PriceFetcher) Refresh(ctx context.Context, ids []uint) map[uint]models.PriceQuote {
	start := time.Now()
	for begin := 0; begin < len(ids); begin += f.batchSize {
		end := begin + f.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[begin:end]

		quotes, err := f.fetch(ctx, chunk)
		if err != nil {
			log.Printf("Price fetcher (%s): chunk of %d ids failed: %v", f.name, len(chunk), err)
			metrics.PriceChunksTotal.WithLabelValues(f.name, "failed").Inc()
			continue
		}
		f.merge(quotes)
		metrics.PriceChunksTotal.WithLabelValues(f.name, "ok").Inc()
	}
	metrics.PriceRefreshDuration.WithLabelValues(f.name).Observe(time.Since(start).Seconds())
	return f.Snapshot(ids)
}

func (f *PriceFetcher) merge(quotes map[uint]models.PriceQuote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, quote := range quotes {
		f.quotes[id] = quote
	}
}

// Put records a single quote obtained outside a batch refresh.
func (f *PriceFetcher) Put(id uint, quote models.PriceQuote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[id] = quote
}

// Quote returns the cached quote for one id, if any.
func (f *PriceFetcher) Quote(id uint) (models.PriceQuote, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	quote, ok := f.quotes[id]
	return quote, ok
}

// Snapshot copies the cached quotes for the given ids. Ids with no quote
// yet are simply absent from the result.
func (f *PriceFetcher) Snapshot(ids []uint) map[uint]models.PriceQuote {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[uint]models.PriceQuote, len(ids))
	for _, id := range ids {
		if quote, ok := f.quotes[id]; ok {
			out[id] = quote
		}
	}
	return out
}

// GradedFetchCooldown is the minimum interval between remote graded-price
// lookups for the same card. The upstream sales source is aggressively rate
// limited; repeated user taps must not hammer it.
const GradedFetchCooldown = 60 * time.Second

// CooldownGuard tracks a per-card "cooldown until" timestamp. Admission and
// arming happen in one critical section, so two rapid calls cannot both
// observe an expired window, and the window stays armed whether or not the
// lookup that follows succeeds.
type CooldownGuard struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	until map[uint]time.Time
}

func NewCooldownGuard(window time.Duration) *CooldownGuard {
	return &CooldownGuard{
		window: window,
		now:    time.Now,
		until:  make(map[uint]time.Time),
	}
}

// Begin admits or rejects a remote lookup for id. A rejection is purely
// local; no network call is attempted.
func (g *CooldownGuard) Begin(id uint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if until, ok := g.until[id]; ok && now.Before(until) {
		metrics.GradedCooldownRejections.Inc()
		return ErrRateLimited
	}
	g.until[id] = now.Add(g.window)
	return nil
}

// RetryAfter reports how long until id may be looked up again.
func (g *CooldownGuard) RetryAfter(id uint) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.until[id]
	if !ok {
		return 0
	}
	remaining := until.Sub(g.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
