package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quote-relay/src/helpers"
	"quote-relay/src/logger"
	"quote-relay/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type stubFeed struct {
	mu      sync.Mutex
	onTrade func(models.MTradeEvent)
	subs    []string
}

func (s *stubFeed) Connect(ctx context.Context) error { return nil }
func (s *stubFeed) Disconnect() error                 { return nil }
func (s *stubFeed) UnsubscribeTrades([]string) error  { return nil }
func (s *stubFeed) OnConnect(func())                  {}
func (s *stubFeed) OnDisconnect(func())               {}
func (s *stubFeed) OnError(func(error))               {}

func (s *stubFeed) SubscribeTrades(symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, symbols...)
	return nil
}

func (s *stubFeed) OnTrade(cb func(models.MTradeEvent)) {
	s.onTrade = cb
}

type stubSnapshots struct {
	mu    sync.Mutex
	snaps map[string]models.MSnapshot
	err   error
	calls int

	// when set, GetSnapshots signals started and blocks until gate closes
	started chan struct{}
	gate    chan struct{}
}

func (s *stubSnapshots) GetSnapshots(ctx context.Context, symbols []string) (map[string]models.MSnapshot, error) {
	if s.gate != nil {
		s.started <- struct{}{}
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]models.MSnapshot)
	for _, sym := range symbols {
		if snap, ok := s.snaps[sym]; ok {
			out[sym] = snap
		}
	}
	return out, nil
}

type event struct {
	clientID string
	quote    *models.MQuoteView
	message  string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) PushQuoteUpdate(clientID string, quote models.MQuoteView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{clientID: clientID, quote: &quote})
	return nil
}

func (r *recorder) PushError(clientID string, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{clientID: clientID, message: message})
	return nil
}

func (r *recorder) snapshot() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

// -----------------------------------------------------------------------------

func newTestService(snaps *stubSnapshots) (*Service, *stubFeed, *recorder) {
	feed := &stubFeed{}
	rec := &recorder{}
	svc := NewService(&models.MConfig{}, logger.NewNop(), feed, snaps, rec)
	return svc, feed, rec
}

func appleSnapshot(price float64) models.MSnapshot {
	return models.MSnapshot{
		Name:        "Apple Inc.",
		LatestTrade: &models.MSnapshotTrade{Price: f(price)},
		DailyBar:    &models.MBar{Open: f(100)},
	}
}

// -----------------------------------------------------------------------------
// Subscribe
// -----------------------------------------------------------------------------

func TestSubscribePushesCachedThenFresh(t *testing.T) {
	snaps := &stubSnapshots{snaps: map[string]models.MSnapshot{"AAPL": appleSnapshot(120)}}
	svc, _, rec := newTestService(snaps)

	svc.Store().MergeTrade(models.MTradeEvent{Symbol: "AAPL", Price: f(110)})

	require.NoError(t, svc.Subscribe(context.Background(), "c1", "aapl, msft"))

	events := rec.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, 110.0, *events[0].quote.Price)
	assert.Equal(t, 120.0, *events[1].quote.Price)
	assert.Equal(t, "Apple Inc.", events[1].quote.Description)

	assert.Equal(t, []string{"AAPL", "MSFT"}, svc.Registry().SymbolsOf("c1"))
	assert.Equal(t, 1, snaps.calls)
}

func TestSubscribeUnconfigured(t *testing.T) {
	rec := &recorder{}
	svc := NewService(&models.MConfig{}, logger.NewNop(), nil, nil, rec)

	err := svc.Subscribe(context.Background(), "c1", []interface{}{"AAPL"})
	var cfgErr *helpers.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, helpers.MsgNotConfigured, events[0].message)
	assert.False(t, svc.Registry().HasClient("c1"))
	assert.False(t, svc.Status().Configured)
}

func TestSubscribeSnapshotFailureKeepsSubscription(t *testing.T) {
	snaps := &stubSnapshots{err: errors.New("502 bad gateway")}
	svc, _, rec := newTestService(snaps)

	err := svc.Subscribe(context.Background(), "c1", "TSLA")
	var snapErr *helpers.SnapshotFetchError
	require.True(t, errors.As(err, &snapErr))

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, helpers.MsgSnapshotFailed, events[0].message)
	assert.Equal(t, []string{"TSLA"}, svc.Registry().SymbolsOf("c1"))
	assert.Equal(t, uint64(1), svc.Status().Metrics.SnapshotFailures)
}

func TestSubscribeEmptyClearsInterest(t *testing.T) {
	snaps := &stubSnapshots{snaps: map[string]models.MSnapshot{}}
	svc, _, rec := newTestService(snaps)

	require.NoError(t, svc.Subscribe(context.Background(), "c1", "AAPL"))
	require.NoError(t, svc.Subscribe(context.Background(), "c1", " , "))

	assert.Empty(t, svc.Registry().RequiredSymbols())
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 1, snaps.calls)
}

func TestUnsubscribeAndDisconnect(t *testing.T) {
	svc, _, _ := newTestService(&stubSnapshots{})

	require.NoError(t, svc.Subscribe(context.Background(), "c1", "AAPL,MSFT"))
	require.NoError(t, svc.Subscribe(context.Background(), "c2", "MSFT"))

	svc.Unsubscribe("c1", "aapl")
	assert.Equal(t, []string{"MSFT"}, svc.Registry().RequiredSymbols())

	svc.Disconnect("c2")
	svc.Disconnect("c1")
	assert.Empty(t, svc.Registry().RequiredSymbols())
	assert.Empty(t, svc.Registry().Clients())
}

// -----------------------------------------------------------------------------
// Point reads
// -----------------------------------------------------------------------------

func TestConcurrentGetQuotesShareOneFetch(t *testing.T) {
	snaps := &stubSnapshots{
		snaps:   map[string]models.MSnapshot{"AAPL": appleSnapshot(105)},
		started: make(chan struct{}, 4),
		gate:    make(chan struct{}),
	}
	svc, _, _ := newTestService(snaps)

	var wg sync.WaitGroup
	results := make(chan []models.MQuoteView, 4)
	get := func() {
		defer wg.Done()
		quotes, err := svc.GetQuotes(context.Background(), "AAPL")
		assert.NoError(t, err)
		results <- quotes
	}

	wg.Add(1)
	go get()
	<-snaps.started

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go get()
	}
	// give the late callers time to join the in-flight fetch
	time.Sleep(50 * time.Millisecond)
	close(snaps.gate)

	wg.Wait()
	close(results)
	for quotes := range results {
		require.Len(t, quotes, 1)
		assert.Equal(t, 105.0, *quotes[0].Price)
	}
	assert.Equal(t, 1, snaps.calls)
	assert.Equal(t, uint64(1), svc.Status().Metrics.SnapshotFetches)
}

func TestGetQuotesCallerCancelDoesNotAbortSharedFetch(t *testing.T) {
	snaps := &stubSnapshots{
		snaps:   map[string]models.MSnapshot{"AAPL": appleSnapshot(105)},
		started: make(chan struct{}, 2),
		gate:    make(chan struct{}),
	}
	svc, _, _ := newTestService(snaps)

	ctx, cancel := context.WithCancel(context.Background())
	abandoned := make(chan error, 1)
	go func() {
		_, err := svc.GetQuotes(ctx, "AAPL")
		abandoned <- err
	}()
	<-snaps.started

	done := make(chan []models.MQuoteView, 1)
	go func() {
		quotes, err := svc.GetQuotes(context.Background(), "AAPL")
		assert.NoError(t, err)
		done <- quotes
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	var snapErr *helpers.SnapshotFetchError
	assert.True(t, errors.As(<-abandoned, &snapErr))

	close(snaps.gate)
	quotes := <-done
	require.Len(t, quotes, 1)
	assert.Equal(t, 105.0, *quotes[0].Price)
	assert.Equal(t, 1, snaps.calls)
}

func TestGetQuotes(t *testing.T) {
	snaps := &stubSnapshots{snaps: map[string]models.MSnapshot{"AAPL": appleSnapshot(105)}}
	svc, _, _ := newTestService(snaps)

	quotes, err := svc.GetQuotes(context.Background(), "aapl,zzzz")
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "AAPL", quotes[0].Symbol)
	assert.InDelta(t, 5.0, *quotes[0].ChangePercent, 1e-9)

	_, err = svc.GetQuotes(context.Background(), "")
	var valErr *helpers.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestGetQuotesFallsBackToCache(t *testing.T) {
	snaps := &stubSnapshots{err: errors.New("timeout")}
	svc, _, _ := newTestService(snaps)

	_, err := svc.GetQuotes(context.Background(), "AAPL")
	var snapErr *helpers.SnapshotFetchError
	require.True(t, errors.As(err, &snapErr))

	svc.Store().MergeTrade(models.MTradeEvent{Symbol: "AAPL", Price: f(99)})
	quotes, err := svc.GetQuotes(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, 99.0, *quotes[0].Price)
}

func TestGetQuotesUnconfigured(t *testing.T) {
	svc := NewService(&models.MConfig{}, logger.NewNop(), nil, nil, &recorder{})

	_, err := svc.GetQuotes(context.Background(), "AAPL")
	var cfgErr *helpers.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestCachedQuotes(t *testing.T) {
	svc, _, _ := newTestService(&stubSnapshots{})
	svc.Store().MergeTrade(models.MTradeEvent{Symbol: "MSFT", Price: f(400)})

	quotes := svc.CachedQuotes([]string{"msft", "aapl"})
	require.Len(t, quotes, 1)
	assert.Equal(t, "MSFT", quotes[0].Symbol)
}

// -----------------------------------------------------------------------------
// Live trades
// -----------------------------------------------------------------------------

func TestTradesAreBroadcastToSubscribers(t *testing.T) {
	svc, feed, rec := newTestService(&stubSnapshots{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	require.NoError(t, svc.Subscribe(ctx, "c1", "AAPL"))
	syncCtx, syncCancel := context.WithTimeout(ctx, 2*time.Second)
	defer syncCancel()
	require.NoError(t, svc.Manager().Sync(syncCtx))

	feed.onTrade(models.MTradeEvent{Symbol: "AAPL", Price: f(150), Size: f(10)})
	feed.onTrade(models.MTradeEvent{Symbol: "AAPL"})
	feed.onTrade(models.MTradeEvent{Symbol: "MSFT", Price: f(1)})

	require.Eventually(t, func() bool {
		status := svc.Status()
		return status.Metrics.TradesIngested == 2 && status.Metrics.TradesDiscarded == 1
	}, 2*time.Second, 5*time.Millisecond)

	var quotes []models.MQuoteView
	for _, ev := range rec.snapshot() {
		if ev.quote != nil {
			quotes = append(quotes, *ev.quote)
		}
	}
	require.Len(t, quotes, 1)
	assert.Equal(t, "AAPL", quotes[0].Symbol)
	assert.Equal(t, 150.0, *quotes[0].Price)

	status := svc.Status()
	assert.Equal(t, uint64(1), status.Metrics.QuotesPushed)
	assert.Equal(t, 2, status.Metrics.TrackedSymbols)
	assert.Equal(t, "CONNECTED", status.Stream.State)
}
