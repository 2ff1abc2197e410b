package subscription

import (
	"sort"
	"sync"

	"quote-relay/src/utils"
)

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry is the many-to-many map between clients and the symbols they watch.
// Both directions are updated under one lock so readers never see a torn edge.
type Registry struct {
	mu       sync.RWMutex
	byClient map[string]map[string]struct{}
	bySymbol map[string]map[string]struct{}
}

// -----------------------------------------------------------------------------

func NewRegistry() *Registry {
	return &Registry{
		byClient: make(map[string]map[string]struct{}),
		bySymbol: make(map[string]map[string]struct{}),
	}
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// SetSubscriptions replaces the client's symbol set and reports whether the
// required set changed. An empty set clears interest but keeps the client.
func (r *Registry) SetSubscriptions(clientID string, symbols []string) bool {
	next := toSet(utils.NormalizeSymbols(symbols))

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.byClient[clientID]
	changed := false

	for sym := range prev {
		if _, keep := next[sym]; !keep {
			changed = r.dropEdge(clientID, sym) || changed
		}
	}
	for sym := range next {
		if _, had := prev[sym]; !had {
			changed = r.addEdge(clientID, sym) || changed
		}
	}

	r.byClient[clientID] = next
	return changed
}

// -----------------------------------------------------------------------------

// Unsubscribe removes symbols from the client's set. The client slot is dropped
// once its set is empty. Unknown clients are a no-op.
func (r *Registry) Unsubscribe(clientID string, symbols []string) bool {
	remove := utils.NormalizeSymbols(symbols)
	if len(remove) == 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byClient[clientID]
	if !ok {
		return false
	}

	changed := false
	for _, sym := range remove {
		if _, had := current[sym]; !had {
			continue
		}
		delete(current, sym)
		changed = r.dropEdge(clientID, sym) || changed
	}

	if len(current) == 0 {
		delete(r.byClient, clientID)
	}
	return changed
}

// -----------------------------------------------------------------------------

// RemoveClient drops the client and every edge it owns.
func (r *Registry) RemoveClient(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byClient[clientID]
	if !ok {
		return false
	}

	changed := false
	for sym := range current {
		changed = r.dropEdge(clientID, sym) || changed
	}
	delete(r.byClient, clientID)
	return changed
}

// -----------------------------------------------------------------------------

// addEdge reports whether sym gained its first subscriber. Caller holds mu.
func (r *Registry) addEdge(clientID, sym string) bool {
	subs, ok := r.bySymbol[sym]
	if !ok {
		subs = make(map[string]struct{})
		r.bySymbol[sym] = subs
	}
	subs[clientID] = struct{}{}
	return !ok
}

// dropEdge reports whether sym lost its last subscriber. Caller holds mu.
func (r *Registry) dropEdge(clientID, sym string) bool {
	subs, ok := r.bySymbol[sym]
	if !ok {
		return false
	}
	delete(subs, clientID)
	if len(subs) == 0 {
		delete(r.bySymbol, sym)
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Reads (sorted copies)
// -----------------------------------------------------------------------------

// RequiredSymbols is every symbol with at least one subscriber.
func (r *Registry) RequiredSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.bySymbol)
}

func (r *Registry) SubscribersOf(symbol string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.bySymbol[utils.NormalizeSymbol(symbol)])
}

func (r *Registry) SymbolsOf(clientID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.byClient[clientID])
}

func (r *Registry) Clients() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.byClient)
}

func (r *Registry) HasClient(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byClient[clientID]
	return ok
}

// -----------------------------------------------------------------------------

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
