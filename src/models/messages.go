package models

// -----------------------------------------------------------------------------
// Websocket protocol
// -----------------------------------------------------------------------------

const (
	CommandSubscribe        = "subscribe"
	CommandSubscribeQuotes  = "subscribe:quotes"
	CommandUnsubscribe      = "unsubscribe"
	CommandUnsubscribeQuote = "unsubscribe:quotes"

	EventQuotesUpdate = "quotes:update"
	EventQuotesError  = "quotes:error"
)

// MClientCommand is an inbound client message. Symbols may be a comma string or an array.
type MClientCommand struct {
	Command string      `json:"command"`
	Symbols interface{} `json:"symbols"`
}

// MServerEvent is an outbound message pushed to one client.
type MServerEvent struct {
	Type    string      `json:"type"`
	Quote   *MQuoteView `json:"quote,omitempty"`
	Message string      `json:"message,omitempty"`
}
