package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HomeLabTec/pokemon/internal/metrics"
	"github.com/HomeLabTec/pokemon/internal/models"
)

// ScanStep is the workflow position of one scan session.
type ScanStep string

const (
	StepIdle            ScanStep = "idle"
	StepIdentifying     ScanStep = "identifying"
	StepMultipleMatches ScanStep = "multiple_matches"
	StepConfirm         ScanStep = "confirm"
	StepNotFound        ScanStep = "not_found"
	StepSuccess         ScanStep = "success"
)

// ScanState is the full transient state of a scan session. It only changes
// through transition, which keeps the workflow testable as a table of
// (state, event) pairs.
type ScanState struct {
	Step      ScanStep      `json:"step"`
	OCRName   string        `json:"ocr_name"`
	OCRNumber string        `json:"ocr_number"`
	RawText   string        `json:"raw_text,omitempty"`
	Matches   []models.Card `json:"matches,omitempty"`
	Selected  *models.Card  `json:"selected,omitempty"`
	Message   string        `json:"message,omitempty"`
}

type scanEvent interface{ isScanEvent() }

type photoSubmitted struct{}

type recognitionReturned struct {
	result *IdentifyResult
	err    error
}

type matchesResolved struct {
	resolution *Resolution
	err        error
}

type manualResults struct {
	cards []models.Card
	err   error
}

type candidatePicked struct{ card models.Card }

type holdingSaved struct{}

type scanReset struct{}

func (photoSubmitted) isScanEvent()      {}
func (recognitionReturned) isScanEvent() {}
func (matchesResolved) isScanEvent()     {}
func (manualResults) isScanEvent()       {}
func (candidatePicked) isScanEvent()     {}
func (holdingSaved) isScanEvent()        {}
func (scanReset) isScanEvent()           {}

const catalogSearchFailedMessage = "Unable to search the catalog."

// transition is the pure state function of the disambiguation workflow.
// Events that do not apply to the current step leave the state unchanged.
//
// Auto-advance to Confirm requires a single strict (name and number) match;
// any weaker signal, including a lone manual-search result, waits for an
// explicit human pick. That asymmetry suppresses false positives from
// optical misreads of similarly named cards in other sets.
func transition(s ScanState, ev scanEvent) ScanState {
	switch ev := ev.(type) {
	case photoSubmitted:
		return ScanState{Step: StepIdentifying}

	case recognitionReturned:
		if s.Step != StepIdentifying {
			return s
		}
		if ev.err != nil {
			return ScanState{Step: StepIdle, Message: identifyFailureMessage(ev.err)}
		}
		next := ScanState{
			Step:      StepIdentifying,
			OCRName:   strings.TrimSpace(ev.result.Name),
			OCRNumber: strings.TrimSpace(ev.result.Number),
			RawText:   ev.result.RawText,
		}
		if next.OCRName == "" || next.OCRNumber == "" {
			next.Step = StepNotFound
		}
		return next

	case matchesResolved:
		if s.Step != StepIdentifying {
			return s
		}
		if ev.err != nil {
			s.Step = StepNotFound
			s.Message = catalogSearchFailedMessage
			s.Matches = nil
			return s
		}
		switch {
		case len(ev.resolution.Strict) == 1:
			card := ev.resolution.Strict[0]
			s.Step = StepConfirm
			s.Selected = &card
			s.Matches = nil
		case len(ev.resolution.Strict) >= 2:
			s.Step = StepMultipleMatches
			s.Matches = ev.resolution.Strict
		case len(ev.resolution.ByName) >= 1:
			s.Step = StepMultipleMatches
			s.Matches = ev.resolution.ByName
		default:
			s.Step = StepNotFound
			s.Matches = nil
		}
		return s

	case manualResults:
		if s.Step != StepNotFound {
			return s
		}
		if ev.err != nil {
			s.Message = catalogSearchFailedMessage
			return s
		}
		if len(ev.cards) == 0 {
			s.Matches = nil
			return s
		}
		s.Step = StepMultipleMatches
		s.Matches = ev.cards
		s.Message = ""
		return s

	case candidatePicked:
		if s.Step != StepMultipleMatches {
			return s
		}
		card := ev.card
		s.Step = StepConfirm
		s.Selected = &card
		s.Matches = nil
		return s

	case holdingSaved:
		if s.Step != StepConfirm {
			return s
		}
		s.Step = StepSuccess
		return s

	case scanReset:
		return ScanState{Step: StepIdle}
	}
	return s
}

func identifyFailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnprocessable):
		return "Couldn't detect a card. Try again with better lighting and include the full card in frame."
	case errors.Is(err, ErrInvalidResponse):
		return "Couldn't identify the card. Please try again."
	default:
		return "Recognition server unreachable. Check your connection and try again."
	}
}

// Identifier is the recognition dependency of the scan workflow.
type Identifier interface {
	Identify(ctx context.Context, imageData []byte) (*IdentifyResult, error)
}

var ErrSessionNotFound = errors.New("scan session not found")

// ScanSession owns one workflow's state. All mutation goes through apply,
// which discards results whose generation has been superseded by a newer
// photo submission or search.
type ScanSession struct {
	ID string

	mu         sync.Mutex
	state      ScanState
	generation uint64
	updatedAt  time.Time
}

func (s *ScanSession) apply(gen uint64, ev scanEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		metrics.ScanStaleResultsDiscarded.Inc()
		return false
	}
	s.state = transition(s.state, ev)
	s.updatedAt = time.Now()
	return true
}

// bump advances the generation for a new user action and applies its event.
func (s *ScanSession) bump(ev scanEvent) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.state = transition(s.state, ev)
	s.updatedAt = time.Now()
	return s.generation
}

const scanSessionTTL = 30 * time.Minute

// ScanManager runs disambiguation workflows: one active identification or
// catalog search per session, superseded by any newer user action.
type ScanManager struct {
	identifier Identifier
	resolver   *CatalogResolver

	mu       sync.Mutex
	sessions map[string]*ScanSession
}

func NewScanManager(identifier Identifier, resolver *CatalogResolver) *ScanManager {
	return &ScanManager{
		identifier: identifier,
		resolver:   resolver,
		sessions:   make(map[string]*ScanSession),
	}
}

// Create opens a new session and prunes expired ones.
func (m *ScanManager) Create() *ScanSession {
	session := &ScanSession{
		ID:        uuid.New().String(),
		state:     ScanState{Step: StepIdle},
		updatedAt: time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-scanSessionTTL)
	for id, s := range m.sessions {
		s.mu.Lock()
		stale := s.updatedAt.Before(cutoff)
		s.mu.Unlock()
		if stale {
			delete(m.sessions, id)
		}
	}
	m.sessions[session.ID] = session
	return session
}

func (m *ScanManager) get(id string) (*ScanSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (m *ScanManager) State(id string) (ScanState, error) {
	session, err := m.get(id)
	if err != nil {
		return ScanState{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.state, nil
}

// SubmitPhoto starts identification in the background. The photo has
// already been downscaled by the caller.
func (m *ScanManager) SubmitPhoto(id string, imageData []byte) error {
	session, err := m.get(id)
	if err != nil {
		return err
	}
	gen := session.bump(photoSubmitted{})
	go m.identify(session, gen, imageData)
	return nil
}

func (m *ScanManager) identify(session *ScanSession, gen uint64, imageData []byte) {
	start := time.Now()
	result, err := m.identifier.Identify(context.Background(), imageData)
	metrics.IdentifyDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IdentifyRequestsTotal.WithLabelValues("failed").Inc()
	} else {
		metrics.IdentifyRequestsTotal.WithLabelValues("success").Inc()
	}

	if !session.apply(gen, recognitionReturned{result: result, err: err}) {
		return
	}

	session.mu.Lock()
	proceed := session.generation == gen && session.state.Step == StepIdentifying
	name, number := session.state.OCRName, session.state.OCRNumber
	session.mu.Unlock()
	if !proceed {
		return
	}

	resolution, resolveErr := m.resolver.Resolve(context.Background(), name, number)
	session.apply(gen, matchesResolved{resolution: resolution, err: resolveErr})
}

// ManualSearch runs a fallback name search. Results are listed for an
// explicit pick and never auto-advance the workflow.
func (m *ScanManager) ManualSearch(id, query string) error {
	session, err := m.get(id)
	if err != nil {
		return err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("empty search query")
	}

	session.mu.Lock()
	if session.state.Step != StepNotFound {
		step := session.state.Step
		session.mu.Unlock()
		return fmt.Errorf("manual search not available in step %q", step)
	}
	session.generation++
	gen := session.generation
	session.mu.Unlock()

	go func() {
		cards, searchErr := m.resolver.searcher.SearchByName(context.Background(), query)
		session.apply(gen, manualResults{cards: cards, err: searchErr})
	}()
	return nil
}

func (m *ScanManager) SelectCandidate(id string, cardID uint) error {
	session, err := m.get(id)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state.Step != StepMultipleMatches {
		return fmt.Errorf("no candidates to pick in step %q", session.state.Step)
	}
	for _, card := range session.state.Matches {
		if card.ID == cardID {
			session.generation++
			session.state = transition(session.state, candidatePicked{card: card})
			session.updatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("card %d is not a listed candidate", cardID)
}

// SelectedCard returns the card awaiting confirmation.
func (m *ScanManager) SelectedCard(id string) (*models.Card, error) {
	session, err := m.get(id)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state.Step != StepConfirm || session.state.Selected == nil {
		return nil, fmt.Errorf("no confirmed selection in step %q", session.state.Step)
	}
	card := *session.state.Selected
	return &card, nil
}

// MarkSaved records that the confirmed holding was persisted.
func (m *ScanManager) MarkSaved(id string) error {
	session, err := m.get(id)
	if err != nil {
		return err
	}
	session.bump(holdingSaved{})
	return nil
}

// Reset clears all transient session state and invalidates in-flight work.
func (m *ScanManager) Reset(id string) error {
	session, err := m.get(id)
	if err != nil {
		return err
	}
	session.bump(scanReset{})
	return nil
}
