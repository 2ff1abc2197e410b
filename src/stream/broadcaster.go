package stream

import (
	"sync/atomic"

	"quote-relay/src/interfaces"
	"quote-relay/src/logger"
	"quote-relay/src/metrics"
	"quote-relay/src/models"
)

// SubscriberLookup resolves the clients interested in a symbol.
type SubscriberLookup interface {
	SubscribersOf(symbol string) []string
}

// -----------------------------------------------------------------------------
// Broadcaster
// -----------------------------------------------------------------------------

// Broadcaster pushes a quote to every current subscriber of its symbol. Pushes
// are fire-and-forget: a failing client never stops delivery to the others.
type Broadcaster struct {
	Logger   *logger.Logger
	subs     SubscriberLookup
	notifier interfaces.IClientNotifier

	pushed atomic.Uint64
	failed atomic.Uint64
}

func NewBroadcaster(subs SubscriberLookup, notifier interfaces.IClientNotifier, log *logger.Logger) *Broadcaster {
	return &Broadcaster{Logger: log, subs: subs, notifier: notifier}
}

// -----------------------------------------------------------------------------

// Publish returns the number of clients the quote was handed to.
func (b *Broadcaster) Publish(quote models.MQuoteView) int {
	clients := b.subs.SubscribersOf(quote.Symbol)
	if len(clients) == 0 {
		return 0
	}

	delivered := 0
	for _, clientID := range clients {
		if err := b.notifier.PushQuoteUpdate(clientID, quote); err != nil {
			b.failed.Add(1)
			metrics.QuotesPushed.WithLabelValues("error").Inc()
			b.Logger.Debug("Quote push for %s to %s failed: %v", quote.Symbol, clientID, err)
			continue
		}
		delivered++
	}

	b.pushed.Add(uint64(delivered))
	metrics.QuotesPushed.WithLabelValues("ok").Add(float64(delivered))
	return delivered
}

// -----------------------------------------------------------------------------

func (b *Broadcaster) Pushed() uint64 {
	return b.pushed.Load()
}

func (b *Broadcaster) Failed() uint64 {
	return b.failed.Load()
}
