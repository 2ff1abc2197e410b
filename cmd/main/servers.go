package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"quote-relay/src/config"
	"quote-relay/src/grpc_control"
	"quote-relay/src/interfaces"
	"quote-relay/src/logger"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

// -----------------------------------------------------------------------------

// startServers runs the HTTP/websocket server and the gRPC health server inside g.
func startServers(
	ctx context.Context,
	g *errgroup.Group,
	srv interfaces.IDataExchanger,
	status grpc_control.StatusSource,
	conf *config.Config,
	appLogger *logger.Logger,
) error {

	// listen before starting anything, so a bind failure leaves g empty
	addr := fmt.Sprintf("%s:%d", conf.GrpcHost, conf.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", addr, err)
	}

	// 1. FastAPIServer
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	// 2. gRPC health server
	grpcServer := grpc.NewServer()
	healthService := grpc_control.NewHealthService(status, 5*time.Second, logger.NewLogger(conf.MConfig, "GrpcHealth"))
	healthService.Register(grpcServer)

	g.Go(func() error { return healthService.Run(ctx) })
	g.Go(func() error {
		appLogger.Info("Starting gRPC health server on %s", addr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		grpcServer.GracefulStop()
		return nil
	})

	return nil
}
