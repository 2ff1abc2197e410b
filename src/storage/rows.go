package storage

import (
	"database/sql"

	"quote-relay/src/models"
)

// Column order shared by the SQL backends.
const stateColumns = "symbol, last_price, open, high, low, volume, previous_close, market_state, last_timestamp, description"

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// stateArgs flattens a state in stateColumns order.
func stateArgs(s models.MSymbolState) []interface{} {
	return []interface{}{
		s.Symbol,
		nullFloat(s.LastPrice),
		nullFloat(s.Open),
		nullFloat(s.High),
		nullFloat(s.Low),
		nullFloat(s.Volume),
		nullFloat(s.PreviousClose),
		s.MarketState,
		s.LastTimestamp,
		s.Description,
	}
}

func scanStates(rows *sql.Rows) ([]models.MSymbolState, error) {
	defer rows.Close()

	var states []models.MSymbolState
	for rows.Next() {
		var st models.MSymbolState
		var last, open, high, low, volume, prevClose sql.NullFloat64
		if err := rows.Scan(&st.Symbol, &last, &open, &high, &low, &volume, &prevClose, &st.MarketState, &st.LastTimestamp, &st.Description); err != nil {
			return nil, err
		}
		st.LastPrice = floatPtr(last)
		st.Open = floatPtr(open)
		st.High = floatPtr(high)
		st.Low = floatPtr(low)
		st.Volume = floatPtr(volume)
		st.PreviousClose = floatPtr(prevClose)
		states = append(states, st)
	}
	return states, rows.Err()
}
