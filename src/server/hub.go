package server

import (
	"context"
	"encoding/json"
	"net/http"

	"quote-relay/src/helpers"
	"quote-relay/src/metrics"
	"quote-relay/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop. Removals are serialized here; the
// relay is told about a disconnect by the client's readPump, see releaseClient.
func (s *FastAPIServer) handleWebsockets() {
	for {
		select {
		case <-s.quit:
			s.closeAll()
			return

		case client := <-s.unregister:
			s.removeClient(client)
		}
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) addClient(client *Client) {
	s.clientsMu.Lock()
	s.clients[client.id] = client
	s.clientsMu.Unlock()
	metrics.ConnectedClients.Inc()
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) removeClient(client *Client) {
	s.clientsMu.Lock()
	current, ok := s.clients[client.id]
	if !ok || current != client {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, client.id)
	close(client.send)
	s.clientsMu.Unlock()

	client.cancel()
	metrics.ConnectedClients.Dec()
}

// -----------------------------------------------------------------------------

// releaseClient drops every subscription the client holds. readPump calls it
// once, after its last command was handled, so no later subscribe can revive
// the client in the relay.
func (s *FastAPIServer) releaseClient(client *Client) {
	if s.relay != nil {
		s.relay.Disconnect(client.id)
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) queueUnregister(client *Client) {
	select {
	case s.unregister <- client:
	case <-s.quit:
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) closeAll() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for id, client := range s.clients {
		delete(s.clients, id)
		close(client.send)
		client.cancel()
		metrics.ConnectedClients.Dec()
	}
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) connectionCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// -----------------------------------------------------------------------------
// Client Notifier Implementation
// -----------------------------------------------------------------------------

func (s *FastAPIServer) PushQuoteUpdate(clientID string, quote models.MQuoteView) error {
	return s.push(clientID, models.MServerEvent{Type: models.EventQuotesUpdate, Quote: &quote})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) PushError(clientID string, message string) error {
	return s.push(clientID, models.MServerEvent{Type: models.EventQuotesError, Message: message})
}

// -----------------------------------------------------------------------------

// push never blocks: a client whose buffer is full is evicted.
func (s *FastAPIServer) push(clientID string, event models.MServerEvent) error {
	s.clientsMu.RLock()
	client, ok := s.clients[clientID]
	if !ok {
		s.clientsMu.RUnlock()
		return ErrUnknownClient
	}

	select {
	case client.send <- event:
		s.clientsMu.RUnlock()
		return nil
	default:
	}
	s.clientsMu.RUnlock()

	// Client too slow, disconnect to keep fan-out non-blocking
	if client.evicting.CompareAndSwap(false, true) {
		s.Logger.Warning("Client %s too slow, evicting", clientID)
		go s.queueUnregister(client)
	}
	return ErrSlowClient
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		id:     uuid.NewString(),
		hub:    s,
		conn:   conn,
		send:   make(chan interface{}, s.Config.Websocket.SendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}

	s.addClient(client)
	s.Logger.Debug("Client %s connected from %s", client.id, c.ClientIP())

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *FastAPIServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Debug("Failed to parse command from %s: %v", client.id, err)
		s.PushError(client.id, helpers.ClientMessage(helpers.NewValidationError("Malformed command.")))
		return
	}

	// evicted or closing: its subscriptions are about to be released
	if client.ctx.Err() != nil {
		s.Logger.Debug("Dropping command from closing client %s", client.id)
		return
	}

	if s.relay == nil {
		s.PushError(client.id, helpers.ClientMessage(helpers.NewConfigurationError("relay not attached", nil)))
		return
	}

	switch cmd.Command {
	case models.CommandSubscribe, models.CommandSubscribeQuotes:
		// the relay reports failures to the client itself
		if err := s.relay.Subscribe(client.ctx, client.id, cmd.Symbols); err != nil {
			s.Logger.Debug("Subscribe for %s failed: %v", client.id, err)
		}

	case models.CommandUnsubscribe, models.CommandUnsubscribeQuote:
		s.relay.Unsubscribe(client.id, cmd.Symbols)

	default:
		s.PushError(client.id, helpers.ClientMessage(helpers.NewValidationError("Unknown command.")))
	}
}
