package stream

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"quote-relay/src/helpers"
	"quote-relay/src/interfaces"
	"quote-relay/src/logger"
	"quote-relay/src/metrics"
	"quote-relay/src/models"
)

// -----------------------------------------------------------------------------
// Connection state
// -----------------------------------------------------------------------------

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// SubscriptionSource is the registry view a reconciliation pass reads.
type SubscriptionSource interface {
	RequiredSymbols() []string
	Clients() []string
}

// -----------------------------------------------------------------------------

type eventKind int

const (
	evConnectResult eventKind = iota
	evUpstreamConnected
	evUpstreamDisconnected
	evUpstreamError
)

type event struct {
	kind eventKind
	err  error
}

const (
	eventBuffer = 64
	tradeBuffer = 4096
)

// -----------------------------------------------------------------------------
// Manager
// -----------------------------------------------------------------------------

// Manager owns the single upstream connection and converges its subscribed
// symbols to the registry's required set. All connection state is mutated by
// the Run goroutine only; other goroutines talk to it through channels.
type Manager struct {
	Logger *logger.Logger

	feed     interfaces.IUpstreamFeed
	subs     SubscriptionSource
	notifier interfaces.IClientNotifier
	errors   *helpers.ErrorHandler
	onTrade  func(models.MTradeEvent)

	kick   chan struct{}
	events chan event
	trades chan models.MTradeEvent
	done   chan struct{}

	state atomic.Int32

	waitMu  sync.Mutex
	waiters []chan error

	// Run goroutine only
	active         map[string]struct{}
	connectWaiters []chan error

	viewMu     sync.RWMutex
	activeView []string
}

// -----------------------------------------------------------------------------

// NewManager wires the manager to the feed callbacks. A nil feed yields a manager
// that never connects (the relay is unconfigured).
func NewManager(
	feed interfaces.IUpstreamFeed,
	subs SubscriptionSource,
	notifier interfaces.IClientNotifier,
	log *logger.Logger,
	onTrade func(models.MTradeEvent),
) *Manager {
	m := &Manager{
		Logger:   log,
		feed:     feed,
		subs:     subs,
		notifier: notifier,
		errors:   helpers.NewErrorHandler(log),
		onTrade:  onTrade,
		kick:     make(chan struct{}, 1),
		events:   make(chan event, eventBuffer),
		trades:   make(chan models.MTradeEvent, tradeBuffer),
		done:     make(chan struct{}),
		active:   make(map[string]struct{}),
	}

	if feed != nil {
		feed.OnConnect(func() { m.post(event{kind: evUpstreamConnected}) })
		feed.OnDisconnect(func() { m.post(event{kind: evUpstreamDisconnected}) })
		feed.OnError(func(err error) { m.post(event{kind: evUpstreamError, err: err}) })
		feed.OnTrade(func(t models.MTradeEvent) {
			select {
			case m.trades <- t:
			case <-m.done:
			}
		})
	}
	return m
}

// -----------------------------------------------------------------------------

func (m *Manager) post(ev event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// -----------------------------------------------------------------------------
// Public API
// -----------------------------------------------------------------------------

// Reconcile requests a pass without waiting. Requests made while a pass is
// pending collapse into it.
func (m *Manager) Reconcile() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

// Sync requests a pass and waits for its outcome, including any connect attempt
// it starts.
func (m *Manager) Sync(ctx context.Context) error {
	done := make(chan error, 1)
	m.waitMu.Lock()
	m.waiters = append(m.waiters, done)
	m.waitMu.Unlock()

	m.Reconcile()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) State() State {
	return State(m.state.Load())
}

// ActiveSymbols returns the symbols confirmed subscribed upstream, sorted.
func (m *Manager) ActiveSymbols() []string {
	m.viewMu.RLock()
	defer m.viewMu.RUnlock()
	out := make([]string, len(m.activeView))
	copy(out, m.activeView)
	return out
}

func (m *Manager) Status() models.MStreamStatus {
	return models.MStreamStatus{
		State:           m.State().String(),
		ActiveSymbols:   m.ActiveSymbols(),
		RequiredSymbols: m.subs.RequiredSymbols(),
	}
}

// -----------------------------------------------------------------------------
// Run loop
// -----------------------------------------------------------------------------

// Run processes reconcile requests and upstream events until ctx is cancelled.
// It must be called once.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.done)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.ingest(ctx)
	}()
	defer wg.Wait()

	m.Logger.Info("Stream manager started")
	for {
		select {
		case <-ctx.Done():
			m.shutdown(ctx.Err())
			m.Logger.Info("Stream manager stopped")
			return nil

		case <-m.kick:
			m.pass(ctx, m.takeWaiters())

		case ev := <-m.events:
			m.handle(ctx, ev)
		}
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) ingest(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-m.trades:
			if m.onTrade != nil {
				m.onTrade(t)
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) takeWaiters() []chan error {
	m.waitMu.Lock()
	defer m.waitMu.Unlock()
	w := m.waiters
	m.waiters = nil
	return w
}

func resolve(waiters []chan error, err error) {
	for _, w := range waiters {
		w <- err
	}
}

// -----------------------------------------------------------------------------

// pass performs one reconciliation step against the current state.
func (m *Manager) pass(ctx context.Context, waiters []chan error) {
	metrics.ReconcilePasses.Inc()

	if m.feed == nil {
		resolve(waiters, nil)
		return
	}

	required := m.subs.RequiredSymbols()

	switch m.State() {
	case StateConnecting:
		// the in-flight attempt runs a pass when it completes
		m.connectWaiters = append(m.connectWaiters, waiters...)

	case StateDisconnected:
		if len(required) == 0 {
			m.clearActive()
			resolve(waiters, nil)
			return
		}
		m.connectWaiters = append(m.connectWaiters, waiters...)
		m.setState(StateConnecting)
		m.Logger.Info("Connecting upstream for %d symbols", len(required))
		go m.connect(ctx)

	case StateConnected:
		if len(required) == 0 {
			m.teardown()
			resolve(waiters, nil)
			return
		}
		m.apply(required)
		resolve(waiters, nil)
	}
}

// -----------------------------------------------------------------------------

// connect runs at most once at a time: pass only starts it on the way from
// Disconnected to Connecting, and later passes join connectWaiters instead.
func (m *Manager) connect(ctx context.Context) {
	err := m.feed.Connect(ctx)
	metrics.UpstreamCalls.WithLabelValues("connect", metrics.Result(err)).Inc()
	m.post(event{kind: evConnectResult, err: err})
}

// -----------------------------------------------------------------------------

func (m *Manager) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evConnectResult:
		waiters := m.connectWaiters
		m.connectWaiters = nil

		if ev.err != nil {
			m.setState(StateDisconnected)
			m.clearActive()
			cerr := helpers.NewConnectionError("upstream connect failed", ev.err)
			m.errors.Handle(cerr, "stream connect")
			m.notifyAll(helpers.ClientMessage(cerr))
			resolve(waiters, cerr)
			return
		}

		m.setState(StateConnected)
		m.clearActive()
		m.Logger.Info("Upstream connected")
		m.pass(ctx, waiters)

	case evUpstreamConnected:
		if m.State() == StateConnecting {
			return
		}
		// reconnect performed by the client library: resubscribe from scratch
		m.Logger.Info("Upstream reconnected, resynchronising subscriptions")
		m.setState(StateConnected)
		m.clearActive()
		m.pass(ctx, nil)

	case evUpstreamDisconnected:
		if m.State() != StateConnected {
			return
		}
		m.Logger.Warning("Upstream disconnected")
		m.setState(StateDisconnected)
		m.clearActive()

	case evUpstreamError:
		m.errors.Handle(helpers.NewConnectionError("upstream stream error", ev.err), "stream")
	}
}

// -----------------------------------------------------------------------------

// apply diffs required against active. Subscribe and unsubscribe are attempted
// independently and only successful calls move active.
func (m *Manager) apply(required []string) {
	toSub, toUnsub := diffSymbols(required, m.active)

	if len(toSub) > 0 {
		err := m.feed.SubscribeTrades(toSub)
		metrics.UpstreamCalls.WithLabelValues("subscribe", metrics.Result(err)).Inc()
		if err != nil {
			m.errors.Handle(helpers.NewSubscriptionCallError("subscribe", toSub, err), "reconcile")
		} else {
			for _, sym := range toSub {
				m.active[sym] = struct{}{}
			}
			m.Logger.Debug("Subscribed upstream: %v", toSub)
		}
	}

	if len(toUnsub) > 0 {
		err := m.feed.UnsubscribeTrades(toUnsub)
		metrics.UpstreamCalls.WithLabelValues("unsubscribe", metrics.Result(err)).Inc()
		if err != nil {
			m.errors.Handle(helpers.NewSubscriptionCallError("unsubscribe", toUnsub, err), "reconcile")
		} else {
			for _, sym := range toUnsub {
				delete(m.active, sym)
			}
			m.Logger.Debug("Unsubscribed upstream: %v", toUnsub)
		}
	}

	m.publishActive()
}

// -----------------------------------------------------------------------------

func (m *Manager) teardown() {
	m.Logger.Info("No symbols required, closing upstream stream")
	err := m.feed.Disconnect()
	metrics.UpstreamCalls.WithLabelValues("disconnect", metrics.Result(err)).Inc()
	if err != nil {
		m.errors.Handle(helpers.NewConnectionError("upstream disconnect failed", err), "stream teardown")
	}
	m.setState(StateDisconnected)
	m.clearActive()
}

func (m *Manager) shutdown(cause error) {
	if m.feed != nil && m.State() != StateDisconnected {
		if err := m.feed.Disconnect(); err != nil {
			m.Logger.Warning("Disconnect on shutdown failed: %v", err)
		}
	}
	m.setState(StateDisconnected)
	m.clearActive()

	resolve(m.connectWaiters, cause)
	m.connectWaiters = nil
	resolve(m.takeWaiters(), cause)
}

// -----------------------------------------------------------------------------

func (m *Manager) notifyAll(message string) {
	if m.notifier == nil {
		return
	}
	for _, clientID := range m.subs.Clients() {
		if err := m.notifier.PushError(clientID, message); err != nil {
			m.Logger.Debug("Error push to %s failed: %v", clientID, err)
		}
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	metrics.UpstreamState.Set(float64(s))
}

func (m *Manager) clearActive() {
	m.active = make(map[string]struct{})
	m.publishActive()
}

func (m *Manager) publishActive() {
	view := make([]string, 0, len(m.active))
	for sym := range m.active {
		view = append(view, sym)
	}
	sort.Strings(view)

	m.viewMu.Lock()
	m.activeView = view
	m.viewMu.Unlock()
	metrics.ActiveSymbols.Set(float64(len(view)))
}

// -----------------------------------------------------------------------------

// diffSymbols returns required minus active and active minus required, sorted.
func diffSymbols(required []string, active map[string]struct{}) (toSub, toUnsub []string) {
	want := make(map[string]struct{}, len(required))
	for _, sym := range required {
		want[sym] = struct{}{}
		if _, ok := active[sym]; !ok {
			toSub = append(toSub, sym)
		}
	}
	for sym := range active {
		if _, ok := want[sym]; !ok {
			toUnsub = append(toUnsub, sym)
		}
	}
	sort.Strings(toSub)
	sort.Strings(toUnsub)
	return toSub, toUnsub
}
