package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/confsnap/internal/server"
)

type serveOpts struct {
	*rootOpts
	grpcPort    int
	metricsPort int
	interval    time.Duration
}

func newServe(parent *rootOpts) *serveOpts {
	return &serveOpts{rootOpts: parent}
}

func (opts *serveOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the snapshot gRPC API and observability endpoints",
		Example: `  confsnap serve --grpc-port 50051 --metrics-port 9090
  confsnap serve --backup-interval 1h`,
		RunE: opts.RunE,
	}
	cmd.Flags().IntVar(&opts.grpcPort, "grpc-port", 0, "gRPC listen port (config server.grpc_port when unset)")
	cmd.Flags().IntVar(&opts.metricsPort, "metrics-port", 0, "HTTP port for /metrics, /health, /ready and pprof (config server.metrics_port when unset)")
	cmd.Flags().DurationVar(&opts.interval, "backup-interval", 0, "run a backup of every device at this interval; 0 disables")
	return cmd
}

func (opts *serveOpts) RunE(cmd *cobra.Command, _ []string) error {
	a, err := opts.app(cmd)
	if err != nil {
		return err
	}
	log := a.Log

	grpcPort := a.Config.Server.GrpcPort
	if cmd.Flags().Changed("grpc-port") {
		grpcPort = opts.grpcPort
	}
	metricsPort := a.Config.Server.MetricsPort
	if cmd.Flags().Changed("metrics-port") {
		metricsPort = opts.metricsPort
	}

	log.LogServerStart(grpcPort, a.Config.Store.Backend)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(a.Metrics, log)),
	)
	server.RegisterSnapshotServiceServer(grpcServer, server.NewServer(a.Store, a.Session, a.Inventory, log))

	// Register reflection service for grpcurl/grpcui
	reflection.Register(grpcServer)

	obs := server.NewObservabilityServer(metricsPort, a.Registry, a.Ready, log)

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		log.LogServerReady(grpcPort)
		return grpcServer.Serve(lis)
	})
	g.Go(obs.Start)

	if opts.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opts.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.Session.Run(ctx, a.Inventory.Devices)
				}
			}
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.LogServerShutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		grpcServer.GracefulStop()
		return obs.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
