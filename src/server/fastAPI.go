package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"quote-relay/src/interfaces"
	"quote-relay/src/logger"
	"quote-relay/src/models"
	"quote-relay/src/utils"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

type FastAPIServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	http   *http.Server

	relay    interfaces.IQuoteRelay
	calendar *utils.TradingCalendar
	started  time.Time

	// WebSocket clients, keyed by client id
	clients    map[string]*Client
	clientsMu  sync.RWMutex
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(cfg *models.MConfig, log *logger.Logger) *FastAPIServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &FastAPIServer{
		Config:     cfg,
		Logger:     log,
		engine:     gin.New(),
		calendar:   utils.GetCalendar("SPY"),
		started:    time.Now(),
		clients:    make(map[string]*Client),
		unregister: make(chan *Client, 64),
		quit:       make(chan struct{}),
	}

	s.engine.Use(ginzap.Ginzap(log.Zap(), time.RFC3339, true))
	s.engine.Use(ginzap.RecoveryWithZap(log.Zap(), true))
	s.engine.Use(cors.New(corsConfig(cfg.CorsAllowedOrigins)))

	s.setupRoutes()

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.handleWebsockets()
	return s
}

// -----------------------------------------------------------------------------

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// -----------------------------------------------------------------------------

// SetRelay attaches the relay the routes and sockets drive. Call before Start.
func (s *FastAPIServer) SetRelay(relay interfaces.IQuoteRelay) {
	s.relay = relay
}

// Handler exposes the router (used by tests).
func (s *FastAPIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	s.engine.GET("/health", s.getHealth)

	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/metrics", s.getMetrics)
	api.GET("/stream/status", s.getStreamStatus)
	api.GET("/market/quotes", s.getQuotes)
	api.GET("/market/quotes/cached", s.getCachedQuotes)

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *FastAPIServer) Start() error {
	s.Logger.Info("Starting server on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) Stop(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.stopOnce.Do(func() { close(s.quit) })
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	response := gin.H{
		"status":         "ok",
		"connections":    s.connectionCount(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"market_session": s.calendar.Session(time.Now()),
	}
	if s.relay != nil {
		status := s.relay.Status()
		response["configured"] = status.Configured
		response["stream"] = status.Stream.State
	}
	c.JSON(http.StatusOK, response)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getMetrics(c *gin.Context) {
	if !s.requireRelay(c) {
		return
	}
	c.JSON(http.StatusOK, s.relay.Status().Metrics)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getStreamStatus(c *gin.Context) {
	if !s.requireRelay(c) {
		return
	}
	c.JSON(http.StatusOK, s.relay.Status().Stream)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getQuotes(c *gin.Context) {
	if !s.requireRelay(c) {
		return
	}

	quotes, err := s.relay.GetQuotes(c.Request.Context(), c.Query("symbols"))
	if err != nil {
		status, message := httpError(err)
		if status >= http.StatusInternalServerError {
			s.Logger.Error("Quote request failed: %v", err)
		}
		c.JSON(status, gin.H{"message": message})
		return
	}
	c.JSON(http.StatusOK, quotes)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getCachedQuotes(c *gin.Context) {
	if !s.requireRelay(c) {
		return
	}

	raw := c.Query("symbols")
	if len(utils.NormalizeSymbols(raw)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgSymbolsRequired})
		return
	}
	c.JSON(http.StatusOK, s.relay.CachedQuotes(raw))
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) requireRelay(c *gin.Context) bool {
	if s.relay == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Relay not ready."})
		return false
	}
	return true
}
