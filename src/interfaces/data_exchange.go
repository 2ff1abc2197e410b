package interfaces

import (
	"context"

	"quote-relay/src/models"
)

// -----------------------------------------------------------------------------
// IClientNotifier delivers events to one downstream client.
// -----------------------------------------------------------------------------

type IClientNotifier interface {
	// PushQuoteUpdate sends a quotes:update event. It must not block.
	PushQuoteUpdate(clientID string, quote models.MQuoteView) error

	// -----------------------------------------------------------------------------

	// PushError sends a quotes:error event. It must not block.
	PushError(clientID string, message string) error
}

// -----------------------------------------------------------------------------
// IQuoteRelay is what the transport layer drives.
// -----------------------------------------------------------------------------

type IQuoteRelay interface {
	Subscribe(ctx context.Context, clientID string, symbols interface{}) error
	Unsubscribe(clientID string, symbols interface{})
	Disconnect(clientID string)
	GetQuotes(ctx context.Context, symbols interface{}) ([]models.MQuoteView, error)
	CachedQuotes(symbols interface{}) []models.MQuoteView
	Status() models.MRelayStatus
}

// -----------------------------------------------------------------------------
// IDataExchanger is a server exposing the relay to external systems.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	IClientNotifier

	// Start serves until Stop is called.
	Start() error

	// Stop the server gracefully
	Stop(ctx context.Context) error
}
