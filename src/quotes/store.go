package quotes

import (
	"sort"
	"sync"
	"time"

	"quote-relay/src/models"
	"quote-relay/src/utils"
)

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Store keeps the latest merged state for every symbol ever seen. Merges on
// different symbols only contend on the map lock while the entry is looked up.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	dirtyMu sync.Mutex
	dirty   map[string]struct{}

	now func() time.Time
}

type entry struct {
	mu    sync.Mutex
	state models.MSymbolState
}

// -----------------------------------------------------------------------------

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		dirty:   make(map[string]struct{}),
		now:     time.Now,
	}
}

// -----------------------------------------------------------------------------

// SetClock replaces the ingestion clock.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// -----------------------------------------------------------------------------

func (s *Store) entryFor(symbol string) *entry {
	s.mu.RLock()
	e, ok := s.entries[symbol]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[symbol]; ok {
		return e
	}
	e = &entry{state: models.MSymbolState{Symbol: symbol}}
	s.entries[symbol] = e
	return e
}

func (s *Store) markDirty(symbol string) {
	s.dirtyMu.Lock()
	s.dirty[symbol] = struct{}{}
	s.dirtyMu.Unlock()
}

// -----------------------------------------------------------------------------
// Merges
// -----------------------------------------------------------------------------

// MergeSnapshot merges a provider snapshot and returns the resulting view.
// A nil snapshot or empty symbol merges nothing.
func (s *Store) MergeSnapshot(symbol string, snap *models.MSnapshot) (models.MQuoteView, bool) {
	symbol = utils.NormalizeSymbol(symbol)
	if symbol == "" || snap == nil {
		return models.MQuoteView{}, false
	}

	e := s.entryFor(symbol)
	e.mu.Lock()
	e.state = mergeSnapshot(e.state, symbol, snap, s.now())
	view := BuildQuoteView(e.state)
	e.mu.Unlock()

	s.markDirty(symbol)
	return view, true
}

// -----------------------------------------------------------------------------

// MergeTrade folds one trade event into the state. Events without a symbol or a
// usable price are discarded and report false.
func (s *Store) MergeTrade(trade models.MTradeEvent) (models.MQuoteView, bool) {
	symbol := utils.NormalizeSymbol(trade.Symbol)
	if symbol == "" || !validPrice(trade.Price) {
		return models.MQuoteView{}, false
	}

	e := s.entryFor(symbol)
	e.mu.Lock()
	e.state = mergeTrade(e.state, symbol, trade, s.now())
	view := BuildQuoteView(e.state)
	e.mu.Unlock()

	s.markDirty(symbol)
	return view, true
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

func (s *Store) Get(symbol string) (models.MSymbolState, bool) {
	s.mu.RLock()
	e, ok := s.entries[utils.NormalizeSymbol(symbol)]
	s.mu.RUnlock()
	if !ok {
		return models.MSymbolState{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// -----------------------------------------------------------------------------

func (s *Store) Quote(symbol string) (models.MQuoteView, bool) {
	state, ok := s.Get(symbol)
	if !ok {
		return models.MQuoteView{}, false
	}
	return BuildQuoteView(state), true
}

// -----------------------------------------------------------------------------

// Quotes returns views for the known symbols among the input, in input order.
func (s *Store) Quotes(symbols []string) []models.MQuoteView {
	views := make([]models.MQuoteView, 0, len(symbols))
	for _, sym := range symbols {
		if view, ok := s.Quote(sym); ok {
			views = append(views, view)
		}
	}
	return views
}

// -----------------------------------------------------------------------------

// Symbols lists every tracked symbol, sorted.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.entries))
	for sym := range s.entries {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// -----------------------------------------------------------------------------
// Persistence hooks
// -----------------------------------------------------------------------------

// Load seeds states read from storage. Symbols already present are kept as is.
func (s *Store) Load(states []models.MSymbolState) int {
	loaded := 0
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range states {
		sym := utils.NormalizeSymbol(st.Symbol)
		if sym == "" {
			continue
		}
		if _, exists := s.entries[sym]; exists {
			continue
		}
		st.Symbol = sym
		s.entries[sym] = &entry{state: st}
		loaded++
	}
	return loaded
}

// -----------------------------------------------------------------------------

// DrainDirty returns copies of the states changed since the previous drain.
func (s *Store) DrainDirty() []models.MSymbolState {
	s.dirtyMu.Lock()
	symbols := make([]string, 0, len(s.dirty))
	for sym := range s.dirty {
		symbols = append(symbols, sym)
	}
	s.dirty = make(map[string]struct{})
	s.dirtyMu.Unlock()

	sort.Strings(symbols)
	states := make([]models.MSymbolState, 0, len(symbols))
	for _, sym := range symbols {
		if st, ok := s.Get(sym); ok {
			states = append(states, st)
		}
	}
	return states
}

// -----------------------------------------------------------------------------

// MarkDirty re-queues states whose save failed.
func (s *Store) MarkDirty(states []models.MSymbolState) {
	for _, st := range states {
		s.markDirty(st.Symbol)
	}
}
