package interfaces

import (
	"context"

	"quote-relay/src/models"
)

// -----------------------------------------------------------------------------
// IUpstreamFeed is the single streaming connection to the market data provider.
// -----------------------------------------------------------------------------

type IUpstreamFeed interface {

	// Connect opens the stream. It returns once the connection is usable or has failed.
	Connect(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Disconnect closes the stream. Callbacks of the closed connection are not fired afterwards.
	Disconnect() error

	// -----------------------------------------------------------------------------

	// SubscribeTrades adds symbols to the live trade subscription.
	SubscribeTrades(symbols []string) error

	// -----------------------------------------------------------------------------

	// UnsubscribeTrades removes symbols from the live trade subscription.
	UnsubscribeTrades(symbols []string) error

	// -----------------------------------------------------------------------------

	// Callbacks, registered before the first Connect.
	OnConnect(cb func())
	OnDisconnect(cb func())
	OnError(cb func(error))
	OnTrade(cb func(models.MTradeEvent))
}

// -----------------------------------------------------------------------------
// ISnapshotProvider fetches point-in-time snapshots.
// -----------------------------------------------------------------------------

type ISnapshotProvider interface {
	// GetSnapshots returns one snapshot per known symbol; unknown symbols are absent.
	GetSnapshots(ctx context.Context, symbols []string) (map[string]models.MSnapshot, error)
}
