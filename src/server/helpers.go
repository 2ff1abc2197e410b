package server

import (
	"errors"
	"net/http"

	"quote-relay/src/helpers"
)

const msgSymbolsRequired = "Query parameter \"symbols\" is required."

var (
	ErrUnknownClient = errors.New("unknown client")
	ErrSlowClient    = errors.New("client send buffer full")
)

// -----------------------------------------------------------------------------

// httpError maps relay errors to a status code and client message.
func httpError(err error) (int, string) {
	var (
		valErr  *helpers.ValidationError
		cfgErr  *helpers.ConfigurationError
		snapErr *helpers.SnapshotFetchError
	)
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest, helpers.ClientMessage(err)
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable, helpers.ClientMessage(err)
	case errors.As(err, &snapErr):
		return http.StatusBadGateway, "Failed to retrieve quotes from upstream provider."
	default:
		return http.StatusInternalServerError, helpers.ClientMessage(err)
	}
}
