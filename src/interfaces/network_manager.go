package interfaces

import "net/http"

// -----------------------------------------------------------------------------
// INetworkManager provides the HTTP client used for provider REST calls.
// -----------------------------------------------------------------------------

type INetworkManager interface {
	HTTPClient() *http.Client
}
