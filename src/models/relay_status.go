package models

// MStreamStatus represents the published state of the upstream connection.
type MStreamStatus struct {
	State           string   `json:"state"`
	ActiveSymbols   []string `json:"active_symbols"`
	RequiredSymbols []string `json:"required_symbols"`
}

// MRelayMetrics represents the counters of the quote pipeline.
type MRelayMetrics struct {
	TradesIngested   uint64 `json:"trades_ingested"`
	TradesDiscarded  uint64 `json:"trades_discarded"`
	QuotesPushed     uint64 `json:"quotes_pushed"`
	SnapshotFetches  uint64 `json:"snapshot_fetches"`
	SnapshotFailures uint64 `json:"snapshot_failures"`
	TrackedSymbols   int    `json:"tracked_symbols"`
	Clients          int    `json:"clients"`
}

// MRelayStatus is what health and status endpoints report.
type MRelayStatus struct {
	Configured bool          `json:"configured"`
	Stream     MStreamStatus `json:"stream"`
	Metrics    MRelayMetrics `json:"metrics"`
}

// MMarketSession describes the exchange session at a point in time.
type MMarketSession struct {
	Exchange     string `json:"exchange"`
	IsTradingDay bool   `json:"is_trading_day"`
	IsOpen       bool   `json:"is_open"`
}
