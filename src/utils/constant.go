package utils

// -----------------------------------------------------------------------------

// Defaults applied to the configuration when a key is left at its zero value.
const (
	DefaultCurrency             = "USD"
	DefaultMarketState          = "OPEN"
	DefaultFeed                 = "iex"
	DefaultFlushIntervalSeconds = 5
	DefaultRequestTimeout       = 10
	DefaultReconnectLimit       = 20
	DefaultReconnectDelay       = 1
	DefaultSendBuffer           = 256
	DefaultMaxMessageSize       = 64 * 1024
	DefaultHTTPPort             = 5000
	DefaultGrpcPort             = 50051
	DefaultMemoryLimitPercent   = 75
)
