package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"quote-relay/src/logger"
	"quote-relay/src/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
)

var ErrNotConnected = errors.New("alpaca stream not connected")

// -----------------------------------------------------------------------------
// AlpacaSource
// -----------------------------------------------------------------------------

// AlpacaSource adapts the Alpaca market data SDK to IUpstreamFeed and
// ISnapshotProvider. Each Connect builds a fresh stream client; callbacks from
// a client that was replaced or disconnected are dropped.
type AlpacaSource struct {
	Config *models.MUpstreamConfig
	Logger *logger.Logger

	rest *marketdata.Client

	mu         sync.Mutex
	client     *stream.StocksClient
	cancel     context.CancelFunc
	generation uint64
	connecting atomic.Bool

	onConnect    func()
	onDisconnect func()
	onError      func(error)
	onTrade      func(models.MTradeEvent)
}

// -----------------------------------------------------------------------------

func NewAlpacaSource(cfg *models.MUpstreamConfig, httpClient *http.Client, log *logger.Logger) *AlpacaSource {
	return &AlpacaSource{
		Config: cfg,
		Logger: log,
		rest: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:     cfg.KeyID,
			APISecret:  cfg.SecretKey,
			HTTPClient: httpClient,
		}),
	}
}

// -----------------------------------------------------------------------------
// Callbacks
// -----------------------------------------------------------------------------

func (a *AlpacaSource) OnConnect(cb func()) {
	a.mu.Lock()
	a.onConnect = cb
	a.mu.Unlock()
}

func (a *AlpacaSource) OnDisconnect(cb func()) {
	a.mu.Lock()
	a.onDisconnect = cb
	a.mu.Unlock()
}

func (a *AlpacaSource) OnError(cb func(error)) {
	a.mu.Lock()
	a.onError = cb
	a.mu.Unlock()
}

func (a *AlpacaSource) OnTrade(cb func(models.MTradeEvent)) {
	a.mu.Lock()
	a.onTrade = cb
	a.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Stream lifecycle
// -----------------------------------------------------------------------------

// Connect opens a new stream connection, replacing any previous one.
func (a *AlpacaSource) Connect(ctx context.Context) error {
	a.mu.Lock()
	a.closeLocked()
	a.generation++
	gen := a.generation

	connCtx, cancel := context.WithCancel(ctx)
	client := stream.NewStocksClient(
		marketdata.Feed(a.Config.Feed),
		stream.WithCredentials(a.Config.KeyID, a.Config.SecretKey),
		stream.WithReconnectSettings(a.Config.ReconnectLimit, time.Duration(a.Config.ReconnectDelaySeconds)*time.Second),
		stream.WithConnectCallback(func() {
			// the initial connection is reported by Connect's return value
			if a.connecting.Load() {
				return
			}
			a.fire(gen, func() { a.callConnect() })
		}),
		stream.WithDisconnectCallback(func() {
			a.fire(gen, func() { a.callDisconnect() })
		}),
	)
	a.client = client
	a.cancel = cancel
	a.mu.Unlock()

	a.connecting.Store(true)
	err := client.Connect(connCtx)
	a.connecting.Store(false)

	if err != nil {
		a.mu.Lock()
		if a.generation == gen {
			a.client = nil
			a.cancel = nil
		}
		a.mu.Unlock()
		cancel()
		return fmt.Errorf("alpaca stream connect: %w", err)
	}

	a.Logger.Info("Alpaca %s stream connected", a.Config.Feed)
	go a.watch(gen, client)
	return nil
}

// -----------------------------------------------------------------------------

// watch reports a terminated connection unless it was closed on purpose.
func (a *AlpacaSource) watch(gen uint64, client *stream.StocksClient) {
	err := <-client.Terminated()

	a.mu.Lock()
	current := a.generation == gen && a.client == client
	if current {
		a.client = nil
		a.cancel = nil
	}
	onErr, onDisc := a.onError, a.onDisconnect
	a.mu.Unlock()

	if !current {
		return
	}
	if err != nil && onErr != nil {
		onErr(err)
	}
	if onDisc != nil {
		onDisc()
	}
}

// -----------------------------------------------------------------------------

func (a *AlpacaSource) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
	a.generation++
	return nil
}

// closeLocked cancels the current connection. Caller holds mu.
func (a *AlpacaSource) closeLocked() {
	if a.cancel != nil {
		a.cancel()
	}
	a.client = nil
	a.cancel = nil
}

// -----------------------------------------------------------------------------

func (a *AlpacaSource) fire(gen uint64, fn func()) {
	a.mu.Lock()
	live := a.generation == gen && a.client != nil
	a.mu.Unlock()
	if live {
		fn()
	}
}

func (a *AlpacaSource) callConnect() {
	a.mu.Lock()
	cb := a.onConnect
	a.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (a *AlpacaSource) callDisconnect() {
	a.mu.Lock()
	cb := a.onDisconnect
	a.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

func (a *AlpacaSource) current() *stream.StocksClient {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}

func (a *AlpacaSource) SubscribeTrades(symbols []string) error {
	client := a.current()
	if client == nil {
		return ErrNotConnected
	}
	return client.SubscribeToTrades(a.handleTrade, symbols...)
}

func (a *AlpacaSource) UnsubscribeTrades(symbols []string) error {
	client := a.current()
	if client == nil {
		return ErrNotConnected
	}
	return client.UnsubscribeFromTrades(symbols...)
}

// -----------------------------------------------------------------------------

func (a *AlpacaSource) handleTrade(t stream.Trade) {
	a.mu.Lock()
	cb := a.onTrade
	a.mu.Unlock()
	if cb != nil {
		cb(convertStreamTrade(t))
	}
}

// -----------------------------------------------------------------------------
// Snapshots
// -----------------------------------------------------------------------------

// GetSnapshots fetches snapshots over REST. The SDK call is not context aware, so
// ctx is only honoured before the request and while waiting for it.
func (a *AlpacaSource) GetSnapshots(ctx context.Context, symbols []string) (map[string]models.MSnapshot, error) {
	if len(symbols) == 0 {
		return map[string]models.MSnapshot{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		snaps map[string]*marketdata.Snapshot
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		snaps, err := a.rest.GetSnapshots(symbols, marketdata.GetSnapshotRequest{
			Feed: marketdata.Feed(a.Config.Feed),
		})
		ch <- result{snaps: snaps, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		out := make(map[string]models.MSnapshot, len(res.snaps))
		for sym, snap := range res.snaps {
			if snap == nil {
				continue
			}
			out[sym] = convertSnapshot(snap)
		}
		return out, nil
	}
}
