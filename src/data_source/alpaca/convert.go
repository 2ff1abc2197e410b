package alpaca

import (
	"time"

	"quote-relay/src/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
)

// The SDK reports absent values as zero, which the merge treats as unknown.

func convertStreamTrade(t stream.Trade) models.MTradeEvent {
	price := t.Price
	size := float64(t.Size)
	return models.MTradeEvent{
		Symbol:    t.Symbol,
		Price:     &price,
		Size:      &size,
		Timestamp: formatTime(t.Timestamp),
	}
}

func convertSnapshot(s *marketdata.Snapshot) models.MSnapshot {
	out := models.MSnapshot{
		DailyBar:     convertBar(s.DailyBar),
		PrevDailyBar: convertBar(s.PrevDailyBar),
	}
	if s.LatestTrade != nil {
		out.LatestTrade = &models.MSnapshotTrade{
			Price:     nonZero(s.LatestTrade.Price),
			Size:      nonZero(float64(s.LatestTrade.Size)),
			Timestamp: formatTime(s.LatestTrade.Timestamp),
		}
	}
	if s.LatestQuote != nil {
		out.LatestQuote = &models.MSnapshotQuote{
			AskPrice: nonZero(s.LatestQuote.AskPrice),
			BidPrice: nonZero(s.LatestQuote.BidPrice),
		}
	}
	return out
}

func convertBar(b *marketdata.Bar) *models.MBar {
	if b == nil {
		return nil
	}
	return &models.MBar{
		Open:   nonZero(b.Open),
		High:   nonZero(b.High),
		Low:    nonZero(b.Low),
		Close:  nonZero(b.Close),
		Volume: nonZero(float64(b.Volume)),
	}
}

func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
