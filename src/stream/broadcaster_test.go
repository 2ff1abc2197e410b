package stream

import (
	"errors"
	"testing"

	"quote-relay/src/logger"
	"quote-relay/src/models"
	"quote-relay/src/subscription"

	"github.com/stretchr/testify/assert"
)

func TestBroadcasterFansOutToSubscribers(t *testing.T) {
	registry := subscription.NewRegistry()
	registry.SetSubscriptions("c1", []string{"AAPL"})
	registry.SetSubscriptions("c2", []string{"AAPL", "MSFT"})
	registry.SetSubscriptions("c3", []string{"MSFT"})

	notifier := newFakeNotifier()
	b := NewBroadcaster(registry, notifier, logger.NewNop())

	delivered := b.Publish(models.MQuoteView{Symbol: "AAPL"})
	assert.Equal(t, 2, delivered)
	assert.Len(t, notifier.quotesFor("c1"), 1)
	assert.Len(t, notifier.quotesFor("c2"), 1)
	assert.Empty(t, notifier.quotesFor("c3"))
	assert.Equal(t, uint64(2), b.Pushed())
}

func TestBroadcasterSkipsFailingClient(t *testing.T) {
	registry := subscription.NewRegistry()
	registry.SetSubscriptions("slow", []string{"TSLA"})
	registry.SetSubscriptions("ok", []string{"TSLA"})

	notifier := newFakeNotifier()
	notifier.failFor["slow"] = errors.New("buffer full")
	b := NewBroadcaster(registry, notifier, logger.NewNop())

	assert.Equal(t, 1, b.Publish(models.MQuoteView{Symbol: "TSLA"}))
	assert.Len(t, notifier.quotesFor("ok"), 1)
	assert.Equal(t, uint64(1), b.Failed())
}

func TestBroadcasterNoSubscribers(t *testing.T) {
	b := NewBroadcaster(subscription.NewRegistry(), newFakeNotifier(), logger.NewNop())
	assert.Equal(t, 0, b.Publish(models.MQuoteView{Symbol: "IBM"}))
}
