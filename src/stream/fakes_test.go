package stream

import (
	"context"
	"sort"
	"sync"

	"quote-relay/src/models"
)

// fakeFeed records every call the manager makes on the upstream.
type fakeFeed struct {
	mu sync.Mutex

	connects    int
	disconnects int
	subscribed  map[string]struct{}
	subCalls    [][]string
	unsubCalls  [][]string

	connectErr error
	subErr     error
	gate       chan struct{}

	onConnect    func()
	onDisconnect func()
	onError      func(error)
	onTrade      func(models.MTradeEvent)
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subscribed: make(map[string]struct{})}
}

func (f *fakeFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	gate := f.gate
	err := f.connectErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err == nil {
		f.mu.Lock()
		f.subscribed = make(map[string]struct{})
		f.mu.Unlock()
	}
	return err
}

func (f *fakeFeed) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.subscribed = make(map[string]struct{})
	return nil
}

func (f *fakeFeed) SubscribeTrades(symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCalls = append(f.subCalls, append([]string(nil), symbols...))
	if f.subErr != nil {
		return f.subErr
	}
	for _, s := range symbols {
		f.subscribed[s] = struct{}{}
	}
	return nil
}

func (f *fakeFeed) UnsubscribeTrades(symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubCalls = append(f.unsubCalls, append([]string(nil), symbols...))
	for _, s := range symbols {
		delete(f.subscribed, s)
	}
	return nil
}

func (f *fakeFeed) OnConnect(cb func())                 { f.onConnect = cb }
func (f *fakeFeed) OnDisconnect(cb func())              { f.onDisconnect = cb }
func (f *fakeFeed) OnError(cb func(error))              { f.onError = cb }
func (f *fakeFeed) OnTrade(cb func(models.MTradeEvent)) { f.onTrade = cb }

func (f *fakeFeed) setConnectErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

func (f *fakeFeed) setSubErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subErr = err
}

func (f *fakeFeed) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeFeed) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

func (f *fakeFeed) subscribeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subCalls)
}

func (f *fakeFeed) upstreamSymbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.subscribed))
	for s := range f.subscribed {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

type pushed struct {
	clientID string
	quote    *models.MQuoteView
	message  string
}

// fakeNotifier collects pushes and can fail chosen clients.
type fakeNotifier struct {
	mu      sync.Mutex
	pushes  []pushed
	failFor map[string]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failFor: make(map[string]error)}
}

func (n *fakeNotifier) PushQuoteUpdate(clientID string, quote models.MQuoteView) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.failFor[clientID]; err != nil {
		return err
	}
	n.pushes = append(n.pushes, pushed{clientID: clientID, quote: &quote})
	return nil
}

func (n *fakeNotifier) PushError(clientID string, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, pushed{clientID: clientID, message: message})
	return nil
}

func (n *fakeNotifier) errorsFor(clientID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, p := range n.pushes {
		if p.clientID == clientID && p.quote == nil {
			out = append(out, p.message)
		}
	}
	return out
}

func (n *fakeNotifier) quotesFor(clientID string) []models.MQuoteView {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.MQuoteView
	for _, p := range n.pushes {
		if p.clientID == clientID && p.quote != nil {
			out = append(out, *p.quote)
		}
	}
	return out
}
