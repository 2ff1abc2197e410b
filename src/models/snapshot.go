package models

// MSnapshot is a provider snapshot reduced to the fields the state merge reads.
type MSnapshot struct {
	Name          string          `json:"name,omitempty"`
	TradingStatus string          `json:"trading_status,omitempty"`
	LatestTrade   *MSnapshotTrade `json:"latest_trade,omitempty"`
	LatestQuote   *MSnapshotQuote `json:"latest_quote,omitempty"`
	DailyBar      *MBar           `json:"daily_bar,omitempty"`
	PrevDailyBar  *MBar           `json:"prev_daily_bar,omitempty"`
}

type MSnapshotTrade struct {
	Price     *float64 `json:"price,omitempty"`
	Size      *float64 `json:"size,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

type MSnapshotQuote struct {
	AskPrice *float64 `json:"ask_price,omitempty"`
	BidPrice *float64 `json:"bid_price,omitempty"`
}

type MBar struct {
	Open   *float64 `json:"open,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Low    *float64 `json:"low,omitempty"`
	Close  *float64 `json:"close,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
}

// -----------------------------------------------------------------------------

// MTradeEvent is a single upstream trade print.
type MTradeEvent struct {
	Symbol    string   `json:"symbol"`
	Price     *float64 `json:"price"`
	Size      *float64 `json:"size"`
	Timestamp string   `json:"timestamp"`
}
