package quotes

import (
	"quote-relay/src/models"
	"quote-relay/src/utils"
)

// -----------------------------------------------------------------------------

// BuildQuoteView derives the client facing quote from a state. It is pure.
func BuildQuoteView(state models.MSymbolState) models.MQuoteView {
	price := state.LastPrice
	if price == nil {
		price = state.Open
	}

	var change, changePercent *float64
	if price != nil && state.Open != nil {
		change = ptr(*price - *state.Open)
		if *state.Open != 0 {
			changePercent = ptr(*change / *state.Open * 100)
		}
	}

	high := state.High
	if high == nil {
		high = price
	}
	low := state.Low
	if low == nil {
		low = price
	}

	marketState := state.MarketState
	if marketState == "" {
		marketState = utils.DefaultMarketState
	}
	description := state.Description
	if description == "" {
		description = state.Symbol
	}

	var ts *int64
	if state.LastTimestamp != 0 {
		v := state.LastTimestamp
		ts = &v
	}

	return models.MQuoteView{
		Symbol:        state.Symbol,
		Description:   description,
		Currency:      utils.DefaultCurrency,
		Price:         copyPtr(price),
		Change:        change,
		ChangePercent: changePercent,
		PreviousClose: copyPtr(state.PreviousClose),
		Open:          copyPtr(state.Open),
		High:          copyPtr(high),
		Low:           copyPtr(low),
		Volume:        copyPtr(state.Volume),
		MarketState:   marketState,
		GmtTimestamp:  ts,
	}
}

// -----------------------------------------------------------------------------

func ptr(v float64) *float64 {
	return &v
}

func copyPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return ptr(*p)
}
