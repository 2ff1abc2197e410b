package storage

import (
	"context"
	"time"

	"quote-relay/src/interfaces"
	"quote-relay/src/logger"
	"quote-relay/src/metrics"
	"quote-relay/src/models"
)

// StateSource is the store view the persister drains.
type StateSource interface {
	DrainDirty() []models.MSymbolState
	MarkDirty(states []models.MSymbolState)
}

// -----------------------------------------------------------------------------

// StatePersister periodically writes changed symbol states to the database.
type StatePersister struct {
	DB       interfaces.IDatabase
	Source   StateSource
	Interval time.Duration
	Logger   *logger.Logger
}

func NewStatePersister(db interfaces.IDatabase, source StateSource, interval time.Duration, log *logger.Logger) *StatePersister {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StatePersister{DB: db, Source: source, Interval: interval, Logger: log}
}

// -----------------------------------------------------------------------------

// Run flushes on every tick and once more when ctx is cancelled.
func (p *StatePersister) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Flush()
			return nil
		case <-ticker.C:
			p.Flush()
		}
	}
}

// -----------------------------------------------------------------------------

// Flush writes the pending states. Failed batches are re-queued for the next flush.
func (p *StatePersister) Flush() int {
	states := p.Source.DrainDirty()
	if len(states) == 0 {
		return 0
	}

	err := p.DB.SaveSymbolStates(states)
	metrics.StateFlushes.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		p.Logger.Error("Failed to persist %d symbol states: %v", len(states), err)
		p.Source.MarkDirty(states)
		return 0
	}

	p.Logger.Debug("Persisted %d symbol states", len(states))
	return len(states)
}
