package models

// -----------------------------------------------------------------------------
// Per-symbol state (latest known values only)
// -----------------------------------------------------------------------------

// MSymbolState is the merged latest state of one symbol. Nil pointers mean unknown.
type MSymbolState struct {
	Symbol        string   `json:"symbol"`
	LastPrice     *float64 `json:"last_price"`
	Open          *float64 `json:"open"`
	High          *float64 `json:"high"`
	Low           *float64 `json:"low"`
	Volume        *float64 `json:"volume"`
	PreviousClose *float64 `json:"previous_close"`
	MarketState   string   `json:"market_state"`
	LastTimestamp int64    `json:"last_timestamp"` // unix ms
	Description   string   `json:"description"`
}

// -----------------------------------------------------------------------------
// Client facing quote (camelCase for web clients)
// -----------------------------------------------------------------------------

type MQuoteView struct {
	Symbol        string   `json:"symbol"`
	Description   string   `json:"description"`
	Currency      string   `json:"currency"`
	Price         *float64 `json:"price"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"changePercent"`
	PreviousClose *float64 `json:"previousClose"`
	Open          *float64 `json:"open"`
	High          *float64 `json:"high"`
	Low           *float64 `json:"low"`
	Volume        *float64 `json:"volume"`
	MarketState   string   `json:"marketState"`
	GmtTimestamp  *int64   `json:"gmtTimestamp"`
}
