package grpc_control

import (
	"context"
	"time"

	"quote-relay/src/logger"
	"quote-relay/src/models"
	"quote-relay/src/stream"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// StreamService is the health service name tracking the upstream stream.
const StreamService = "quote-relay.stream"

// StatusSource is anything reporting relay status.
type StatusSource interface {
	Status() models.MRelayStatus
}

// -----------------------------------------------------------------------------

// HealthService publishes the relay state on the standard gRPC health protocol.
type HealthService struct {
	Server   *health.Server
	Source   StatusSource
	Interval time.Duration
	Logger   *logger.Logger

	last healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthService(source StatusSource, interval time.Duration, log *logger.Logger) *HealthService {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	h := &HealthService{
		Server:   health.NewServer(),
		Source:   source,
		Interval: interval,
		Logger:   log,
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
	h.Refresh()
	return h
}

// -----------------------------------------------------------------------------

// Register attaches health and reflection to a gRPC server.
func (h *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.Server)
	reflection.Register(s)
}

// -----------------------------------------------------------------------------

// Refresh recomputes the stream status and publishes it.
func (h *HealthService) Refresh() healthpb.HealthCheckResponse_ServingStatus {
	status := StreamServingStatus(h.Source.Status())
	h.Server.SetServingStatus(StreamService, status)
	if status != h.last {
		h.Logger.Info("gRPC health %s -> %s", StreamService, status)
		h.last = status
	}
	return status
}

// -----------------------------------------------------------------------------

func (h *HealthService) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Server.Shutdown()
			return nil
		case <-ticker.C:
			h.Refresh()
		}
	}
}

// -----------------------------------------------------------------------------

// StreamServingStatus is SERVING when the relay can deliver quotes: connected,
// or idle with nobody asking for symbols.
func StreamServingStatus(status models.MRelayStatus) healthpb.HealthCheckResponse_ServingStatus {
	if !status.Configured {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	switch status.Stream.State {
	case stream.StateConnected.String():
		return healthpb.HealthCheckResponse_SERVING
	case stream.StateDisconnected.String():
		if len(status.Stream.RequiredSymbols) == 0 {
			return healthpb.HealthCheckResponse_SERVING
		}
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
