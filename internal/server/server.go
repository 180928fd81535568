// Package server runs the process transport: one TCP listener shared by the
// HTTP API and a gRPC health endpoint for orchestrator probes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/soheilhy/cmux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Config tunes the HTTP side. Zero values use the defaults below.
type Config struct {
	ReadTimeout     time.Duration // default 15s
	WriteTimeout    time.Duration // default 4m; must exceed the request deadline
	IdleTimeout     time.Duration // default 120s
	ShutdownTimeout time.Duration // default 20s
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 4 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 20 * time.Second
	}
	return c
}

// Serve splits ln between gRPC (HTTP/2 with content-type application/grpc)
// and everything else, which goes to handler. It blocks until ctx is
// cancelled or a server fails, then shuts both down. The health service
// reports NOT_SERVING as soon as shutdown starts.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, cfg Config, logger *slog.Logger) error {
	cfg = cfg.withDefaults()

	mux := cmux.New(ln)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	httpSrv := &http.Server{
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Once shutdown has begun, errors from closed listeners are expected.
	serve := func(name string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil && gctx.Err() == nil &&
				!errors.Is(err, http.ErrServerClosed) && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	serve("grpc", func() error { return grpcSrv.Serve(grpcL) })
	serve("http", func() error { return httpSrv.Serve(httpL) })
	serve("cmux", mux.Serve)

	logger.Info("server listening", "addr", ln.Addr().String())

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthSrv.Shutdown()

		// Give in-flight HTTP requests time to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var err error
		if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
			err = fmt.Errorf("http shutdown: %w", serr)
		}

		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcSrv.Stop()
		}
		mux.Close()
		return err
	})

	err := g.Wait()
	logger.Info("shutdown complete")
	return err
}
