package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quote-relay/src/logger"
	"quote-relay/src/models"
	"quote-relay/src/quotes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryDB struct {
	mu    sync.Mutex
	saved map[string]models.MSymbolState
	err   error
	saves int
}

func newMemoryDB() *memoryDB {
	return &memoryDB{saved: make(map[string]models.MSymbolState)}
}

func (m *memoryDB) Initialize() error { return nil }
func (m *memoryDB) Close() error      { return nil }

func (m *memoryDB) SaveSymbolStates(states []models.MSymbolState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	for _, s := range states {
		m.saved[s.Symbol] = s
	}
	return nil
}

func (m *memoryDB) LoadSymbolStates() ([]models.MSymbolState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.MSymbolState, 0, len(m.saved))
	for _, s := range m.saved {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryDB) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// -----------------------------------------------------------------------------

func TestPersisterFlushesDirtyStates(t *testing.T) {
	store := quotes.NewStore()
	db := newMemoryDB()
	p := NewStatePersister(db, store, time.Hour, logger.NewNop())

	store.MergeTrade(models.MTradeEvent{Symbol: "AAPL", Price: f(1)})
	store.MergeTrade(models.MTradeEvent{Symbol: "MSFT", Price: f(2)})

	assert.Equal(t, 2, p.Flush())
	assert.Equal(t, 0, p.Flush())
	assert.Equal(t, 2, db.count())
}

func TestPersisterRequeuesOnFailure(t *testing.T) {
	store := quotes.NewStore()
	db := newMemoryDB()
	db.err = errors.New("disk full")
	p := NewStatePersister(db, store, time.Hour, logger.NewNop())

	store.MergeTrade(models.MTradeEvent{Symbol: "AAPL", Price: f(1)})
	assert.Equal(t, 0, p.Flush())

	db.mu.Lock()
	db.err = nil
	db.mu.Unlock()
	assert.Equal(t, 1, p.Flush())
	assert.Equal(t, 1, db.count())
}

func TestPersisterFlushesOnShutdown(t *testing.T) {
	store := quotes.NewStore()
	db := newMemoryDB()
	p := NewStatePersister(db, store, time.Hour, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	store.MergeTrade(models.MTradeEvent{Symbol: "NVDA", Price: f(900)})
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("persister did not stop")
	}
	assert.Equal(t, 1, db.count())
}

func TestWarmStartFromSQLite(t *testing.T) {
	db := newTestSQLite(t)
	require.NoError(t, db.SaveSymbolStates([]models.MSymbolState{{Symbol: "AMD", LastPrice: f(150), Open: f(140)}}))

	states, err := db.LoadSymbolStates()
	require.NoError(t, err)

	store := quotes.NewStore()
	assert.Equal(t, 1, store.Load(states))
	view, ok := store.Quote("amd")
	require.True(t, ok)
	assert.Equal(t, 150.0, *view.Price)
	assert.Empty(t, store.DrainDirty())
}
