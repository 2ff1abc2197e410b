package interfaces

import "quote-relay/src/models"

// -----------------------------------------------------------------------------
// IDatabase persists the latest state per symbol.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// Initialize sets up the connection and schema.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveSymbolStates upserts a batch of states keyed by symbol.
	SaveSymbolStates(states []models.MSymbolState) error

	// -----------------------------------------------------------------------------

	// LoadSymbolStates returns every stored state.
	LoadSymbolStates() ([]models.MSymbolState, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
