package relay

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"quote-relay/src/helpers"
	"quote-relay/src/interfaces"
	"quote-relay/src/logger"
	"quote-relay/src/metrics"
	"quote-relay/src/models"
	"quote-relay/src/quotes"
	"quote-relay/src/stream"
	"quote-relay/src/subscription"
	"quote-relay/src/utils"

	"golang.org/x/sync/singleflight"
)

const defaultSnapshotTimeout = 10 * time.Second

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

// Service owns the registry, the state store and the stream manager, and is the
// single entry point for client commands and upstream trades.
type Service struct {
	Config *models.MConfig
	Logger *logger.Logger

	registry    *subscription.Registry
	store       *quotes.Store
	manager     *stream.Manager
	broadcaster *stream.Broadcaster
	snapshots   interfaces.ISnapshotProvider
	notifier    interfaces.IClientNotifier
	errors      *helpers.ErrorHandler

	// concurrent fetches for the same symbol list share one provider call
	snapshotGroup singleflight.Group

	configured      bool
	snapshotTimeout time.Duration

	tradesIngested   atomic.Uint64
	tradesDiscarded  atomic.Uint64
	snapshotFetches  atomic.Uint64
	snapshotFailures atomic.Uint64
}

// -----------------------------------------------------------------------------

// NewService builds the relay. feed and snapshots must both be set for the relay
// to be configured; pass untyped nils otherwise.
func NewService(
	cfg *models.MConfig,
	log *logger.Logger,
	feed interfaces.IUpstreamFeed,
	snapshots interfaces.ISnapshotProvider,
	notifier interfaces.IClientNotifier,
) *Service {
	s := &Service{
		Config:          cfg,
		Logger:          log,
		registry:        subscription.NewRegistry(),
		store:           quotes.NewStore(),
		snapshots:       snapshots,
		notifier:        notifier,
		errors:          helpers.NewErrorHandler(log),
		configured:      feed != nil && snapshots != nil,
		snapshotTimeout: defaultSnapshotTimeout,
	}
	if cfg != nil && cfg.Network.RequestTimeout > 0 {
		s.snapshotTimeout = time.Duration(cfg.Network.RequestTimeout) * time.Second
	}

	s.broadcaster = stream.NewBroadcaster(s.registry, notifier, log)
	s.manager = stream.NewManager(feed, s.registry, notifier, log, s.handleTrade)
	return s
}

// -----------------------------------------------------------------------------

// Run drives the stream manager until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if !s.configured {
		s.Logger.Warning("Upstream credentials missing, quote subscriptions will be rejected")
	}
	return s.manager.Run(ctx)
}

func (s *Service) Store() *quotes.Store {
	return s.store
}

func (s *Service) Registry() *subscription.Registry {
	return s.registry
}

func (s *Service) Manager() *stream.Manager {
	return s.manager
}

func (s *Service) Configured() bool {
	return s.configured
}

// -----------------------------------------------------------------------------
// Client commands
// -----------------------------------------------------------------------------

// Subscribe replaces the client's interest, triggers reconciliation and primes
// the client with cached quotes followed by fresh snapshots.
func (s *Service) Subscribe(ctx context.Context, clientID string, raw interface{}) error {
	symbols := utils.NormalizeSymbols(raw)

	if len(symbols) == 0 {
		s.registry.SetSubscriptions(clientID, nil)
		s.manager.Reconcile()
		return nil
	}

	if !s.configured {
		err := helpers.NewConfigurationError("upstream credentials missing", nil)
		s.pushError(clientID, err)
		return err
	}

	if s.registry.SetSubscriptions(clientID, symbols) {
		s.Logger.Debug("Required symbols changed by %s", clientID)
	}
	// always reconcile so a previously failed connect is retried
	s.manager.Reconcile()

	for _, quote := range s.store.Quotes(symbols) {
		s.pushQuote(clientID, quote)
	}

	return s.prime(ctx, clientID, symbols)
}

// -----------------------------------------------------------------------------

func (s *Service) prime(ctx context.Context, clientID string, symbols []string) error {
	snaps, err := s.fetchSnapshots(ctx, symbols)
	if err != nil {
		s.pushError(clientID, err)
		return err
	}

	for _, sym := range symbols {
		snap, ok := snaps[sym]
		if !ok {
			continue
		}
		if quote, merged := s.store.MergeSnapshot(sym, &snap); merged {
			s.pushQuote(clientID, quote)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *Service) Unsubscribe(clientID string, raw interface{}) {
	symbols := utils.NormalizeSymbols(raw)
	if len(symbols) == 0 {
		return
	}
	s.registry.Unsubscribe(clientID, symbols)
	s.manager.Reconcile()
}

// -----------------------------------------------------------------------------

func (s *Service) Disconnect(clientID string) {
	s.registry.RemoveClient(clientID)
	s.manager.Reconcile()
}

// -----------------------------------------------------------------------------
// Point reads
// -----------------------------------------------------------------------------

// GetQuotes refreshes the store from snapshots and returns the merged quotes.
// When the provider fails the cached quotes are served instead, if any.
func (s *Service) GetQuotes(ctx context.Context, raw interface{}) ([]models.MQuoteView, error) {
	symbols := utils.NormalizeSymbols(raw)
	if len(symbols) == 0 {
		return nil, helpers.NewValidationError("Query parameter \"symbols\" is required.")
	}
	if !s.configured {
		return nil, helpers.NewConfigurationError("upstream credentials missing", nil)
	}

	snaps, err := s.fetchSnapshots(ctx, symbols)
	if err != nil {
		cached := s.store.Quotes(symbols)
		if len(cached) > 0 {
			s.Logger.Warning("Serving %d cached quotes after snapshot failure: %v", len(cached), err)
			return cached, nil
		}
		return nil, err
	}

	for _, sym := range symbols {
		if snap, ok := snaps[sym]; ok {
			s.store.MergeSnapshot(sym, &snap)
		}
	}
	return s.store.Quotes(symbols), nil
}

// -----------------------------------------------------------------------------

func (s *Service) CachedQuotes(raw interface{}) []models.MQuoteView {
	return s.store.Quotes(utils.NormalizeSymbols(raw))
}

// -----------------------------------------------------------------------------

func (s *Service) Status() models.MRelayStatus {
	return models.MRelayStatus{
		Configured: s.configured,
		Stream:     s.manager.Status(),
		Metrics: models.MRelayMetrics{
			TradesIngested:   s.tradesIngested.Load(),
			TradesDiscarded:  s.tradesDiscarded.Load(),
			QuotesPushed:     s.broadcaster.Pushed(),
			SnapshotFetches:  s.snapshotFetches.Load(),
			SnapshotFailures: s.snapshotFailures.Load(),
			TrackedSymbols:   s.store.Len(),
			Clients:          len(s.registry.Clients()),
		},
	}
}

// -----------------------------------------------------------------------------
// Upstream trades
// -----------------------------------------------------------------------------

func (s *Service) handleTrade(trade models.MTradeEvent) {
	quote, ok := s.store.MergeTrade(trade)
	if !ok {
		s.tradesDiscarded.Add(1)
		metrics.TradesDiscarded.Inc()
		s.errors.Handle(helpers.NewMalformedEventError(fmt.Sprintf("trade for %q without price", trade.Symbol), nil), "trade ingest")
		return
	}

	s.tradesIngested.Add(1)
	metrics.TradesIngested.Inc()
	s.broadcaster.Publish(quote)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (s *Service) fetchSnapshots(ctx context.Context, symbols []string) (map[string]models.MSnapshot, error) {
	key := strings.Join(symbols, ",")
	ch := s.snapshotGroup.DoChan(key, func() (interface{}, error) {
		// shared by every caller, so one caller going away must not cancel it
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.snapshotTimeout)
		defer cancel()

		s.snapshotFetches.Add(1)
		snaps, err := s.snapshots.GetSnapshots(fetchCtx, symbols)
		metrics.SnapshotRequests.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			s.snapshotFailures.Add(1)
			s.Logger.Error("Snapshot fetch for %v failed: %v", symbols, err)
			return nil, err
		}
		return snaps, nil
	})

	select {
	case <-ctx.Done():
		return nil, helpers.NewSnapshotFetchError("snapshot fetch abandoned", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, helpers.NewSnapshotFetchError("snapshot fetch failed", res.Err)
		}
		return res.Val.(map[string]models.MSnapshot), nil
	}
}

func (s *Service) pushQuote(clientID string, quote models.MQuoteView) {
	if err := s.notifier.PushQuoteUpdate(clientID, quote); err != nil {
		s.Logger.Debug("Quote push to %s failed: %v", clientID, err)
	}
}

func (s *Service) pushError(clientID string, err error) {
	if perr := s.notifier.PushError(clientID, helpers.ClientMessage(err)); perr != nil {
		s.Logger.Debug("Error push to %s failed: %v", clientID, perr)
	}
}
