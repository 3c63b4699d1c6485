package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HomeLabTec/pokemon/internal/models"
)

func quoteFor(id uint, market float64) models.PriceQuote {
	return models.PriceQuote{EntityID: id, Market: &market, Source: "test", FetchedAt: time.Now()}
}

func TestRefreshChunksAtFifty(t *testing.T) {
	var chunks [][]uint
	fetch := func(ctx context.Context, ids []uint) (map[uint]models.PriceQuote, error) {
		chunks = append(chunks, ids)
		out := make(map[uint]models.PriceQuote, len(ids))
		for _, id := range ids {
			out[id] = quoteFor(id, 1.0)
		}
		return out, nil
	}

	ids := make([]uint, 101)
	for i := range ids {
		ids[i] = uint(i + 1)
	}

	f := NewPriceFetcher("cards", fetch)
	quotes := f.Refresh(context.Background(), ids)

	if len(chunks) != 3 {
		t.Fatalf("made %d upstream calls, want 3", len(chunks))
	}
	wantSizes := []int{50, 50, 1}
	for i, chunk := range chunks {
		if len(chunk) != wantSizes[i] {
			t.Errorf("chunk %d has %d ids, want %d", i, len(chunk), wantSizes[i])
		}
	}
	if len(quotes) != 101 {
		t.Errorf("got %d quotes, want 101", len(quotes))
	}
}

func TestRefreshSkipsFailedChunk(t *testing.T) {
	call := 0
	fetch := func(ctx context.Context, ids []uint) (map[uint]models.PriceQuote, error) {
		call++
		if call == 2 {
			return nil, errors.New("upstream 500")
		}
		out := make(map[uint]models.PriceQuote, len(ids))
		for _, id := range ids {
			out[id] = quoteFor(id, 2.0)
		}
		return out, nil
	}

	ids := make([]uint, 120)
	for i := range ids {
		ids[i] = uint(i + 1)
	}

	f := NewPriceFetcher("cards", fetch)
	quotes := f.Refresh(context.Background(), ids)

	if call != 3 {
		t.Fatalf("made %d upstream calls, want 3 (failed chunk must not abort the rest)", call)
	}
	// Chunks 1 and 3 succeeded: 50 + 20 quotes.
	if len(quotes) != 70 {
		t.Errorf("got %d quotes, want 70", len(quotes))
	}
	if _, ok := quotes[51]; ok {
		t.Error("id 51 is in the failed chunk and should be absent")
	}
	if _, ok := quotes[101]; !ok {
		t.Error("id 101 is in the final chunk and should be present")
	}
}

func TestRefreshLastWriterWins(t *testing.T) {
	price := 5.0
	fetch := func(ctx context.Context, ids []uint) (map[uint]models.PriceQuote, error) {
		out := make(map[uint]models.PriceQuote, len(ids))
		for _, id := range ids {
			out[id] = quoteFor(id, price)
		}
		return out, nil
	}

	f := NewPriceFetcher("cards", fetch)
	f.Refresh(context.Background(), []uint{1})

	price = 7.5
	quotes := f.Refresh(context.Background(), []uint{1})
	if got := *quotes[1].Market; got != 7.5 {
		t.Errorf("market = %v, want refreshed value 7.5", got)
	}
}

func TestCooldownGuardRejectsInsideWindow(t *testing.T) {
	now := time.Now()
	g := NewCooldownGuard(GradedFetchCooldown)
	g.now = func() time.Time { return now }

	if err := g.Begin(1); err != nil {
		t.Fatalf("first Begin: %v", err)
	}

	// 5 seconds later the window is still armed.
	now = now.Add(5 * time.Second)
	if err := g.Begin(1); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Begin inside window = %v, want ErrRateLimited", err)
	}
	if after := g.RetryAfter(1); after <= 0 || after > GradedFetchCooldown {
		t.Errorf("RetryAfter = %v, want within (0, %v]", after, GradedFetchCooldown)
	}

	// Past the window the card is admitted again.
	now = now.Add(56 * time.Second)
	if err := g.Begin(1); err != nil {
		t.Errorf("Begin after window = %v, want admission", err)
	}
}

func TestCooldownGuardArmsPerCard(t *testing.T) {
	now := time.Now()
	g := NewCooldownGuard(GradedFetchCooldown)
	g.now = func() time.Time { return now }

	if err := g.Begin(1); err != nil {
		t.Fatalf("Begin(1): %v", err)
	}
	// A different card is unaffected.
	if err := g.Begin(2); err != nil {
		t.Errorf("Begin(2) = %v, want admission", err)
	}
}

func TestCooldownGuardArmsOnAdmissionRegardlessOfOutcome(t *testing.T) {
	// The guard arms when the lookup is admitted, before any network call.
	// Whether that lookup later fails is irrelevant: the next attempt
	// within the window is rejected either way.
	now := time.Now()
	g := NewCooldownGuard(GradedFetchCooldown)
	g.now = func() time.Time { return now }

	if err := g.Begin(9); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// Simulate the admitted lookup failing; no un-arm API exists.
	now = now.Add(time.Second)
	if err := g.Begin(9); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Begin after failed lookup = %v, want ErrRateLimited", err)
	}
}
