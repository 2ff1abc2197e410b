package quotes

import (
	"math"
	"strconv"
	"strings"
	"time"

	"quote-relay/src/models"
	"quote-relay/src/utils"
)

// -----------------------------------------------------------------------------

// mergeSnapshot overlays a provider snapshot on prev. Fields the snapshot cannot
// derive keep their previous value.
func mergeSnapshot(prev models.MSymbolState, symbol string, snap *models.MSnapshot, now time.Time) models.MSymbolState {
	next := prev
	next.Symbol = symbol

	var trade models.MSnapshotTrade
	if snap.LatestTrade != nil {
		trade = *snap.LatestTrade
	}
	var quote models.MSnapshotQuote
	if snap.LatestQuote != nil {
		quote = *snap.LatestQuote
	}
	var daily, prevDaily models.MBar
	if snap.DailyBar != nil {
		daily = *snap.DailyBar
	}
	if snap.PrevDailyBar != nil {
		prevDaily = *snap.PrevDailyBar
	}

	price := firstOf(trade.Price, quote.AskPrice, quote.BidPrice, daily.Close, prevDaily.Close)

	next.LastPrice = copyPtr(price)
	next.Open = copyPtr(firstOf(daily.Open, prevDaily.Close, price))
	next.High = copyPtr(firstOf(daily.High, price))
	next.Low = copyPtr(firstOf(daily.Low, price))
	next.Volume = copyPtr(firstOf(daily.Volume, trade.Size))
	next.PreviousClose = copyPtr(prevDaily.Close)

	if status := strings.TrimSpace(snap.TradingStatus); status != "" {
		next.MarketState = strings.ToUpper(status)
	} else {
		next.MarketState = utils.DefaultMarketState
	}

	next.LastTimestamp = ParseTimestamp(trade.Timestamp, now)

	switch {
	case snap.Name != "":
		next.Description = snap.Name
	case next.Description == "":
		next.Description = symbol
	}

	return next
}

// -----------------------------------------------------------------------------

// mergeTrade folds one trade into prev. Caller guarantees a non-nil price.
func mergeTrade(prev models.MSymbolState, symbol string, trade models.MTradeEvent, now time.Time) models.MSymbolState {
	next := prev
	next.Symbol = symbol
	p := *trade.Price

	if next.Open == nil {
		next.Open = ptr(p)
	}
	if next.High == nil || p > *next.High {
		next.High = ptr(p)
	}
	if next.Low == nil || p < *next.Low {
		next.Low = ptr(p)
	}

	var size float64
	if trade.Size != nil {
		size = *trade.Size
	}
	var volume float64
	if next.Volume != nil {
		volume = *next.Volume
	}
	next.Volume = ptr(volume + size)

	next.LastPrice = ptr(p)
	next.LastTimestamp = ParseTimestamp(trade.Timestamp, now)
	if next.Description == "" {
		next.Description = symbol
	}
	return next
}

// -----------------------------------------------------------------------------

// ParseTimestamp reads RFC3339 or a numeric unix time (seconds or milliseconds)
// and returns unix milliseconds. Missing or unparsable input yields now.
func ParseTimestamp(raw string, now time.Time) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UnixMilli()
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UnixMilli()
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) && n > 0 {
		// below 1e12 the value is in seconds
		if n < 1e12 {
			return int64(n * 1000)
		}
		return int64(n)
	}
	return now.UnixMilli()
}

// -----------------------------------------------------------------------------

func firstOf(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// validPrice rejects nil and non-finite prices.
func validPrice(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}
