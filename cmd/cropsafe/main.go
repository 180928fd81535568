// CropSafe decision backend.
//
// Usage:
//
//	cropsafe [serve]
//	cropsafe quote --file request.json
//	cropsafe claim --file request.json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nyashahama/cropsafe-backend/internal/api"
	"github.com/nyashahama/cropsafe-backend/internal/config"
	"github.com/nyashahama/cropsafe-backend/internal/policy"
	"github.com/nyashahama/cropsafe-backend/internal/server"
)

var version = "dev"

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development. Logs go to stderr so
	// the one-shot commands can print their result on stdout.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	app := &cli.App{
		Name:    "cropsafe",
		Usage:   "Premium quotes and claim decisions for parametric weather policies",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Value:   ".env",
				Usage:   "dotenv file loaded before reading configuration",
				EnvVars: []string{"CROPSAFE_ENV_FILE"},
			},
		},
		Action: func(c *cli.Context) error { return serve(c, logger) },
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: func(c *cli.Context) error { return serve(c, logger) },
			},
			oneShotCommand("quote", "Quote the first policy in a request file", logger),
			oneShotCommand("claim", "Decide a claim for the first policy in a request file", logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// ─── SERVE ────────────────────────────────────────────────────────────────────

func serve(c *cli.Context, logger *slog.Logger) error {
	cfg, err := config.LoadFiles(c.String("env-file"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "mode", cfg.Mode)

	// Root context cancelled by OS signal.
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	handler := api.NewServer(pipeline, api.Config{
		Env:            cfg.Env,
		CORSOrigin:     cfg.CORSOrigin,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return server.Serve(ctx, ln, handler, server.Config{
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
	}, logger)
}

// ─── ONE-SHOT ─────────────────────────────────────────────────────────────────

func oneShotCommand(name, usage string, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    `Path to a request body: {"policies":[...]}`,
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadFiles(c.String("env-file"))
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			raw, err := os.ReadFile(c.String("file"))
			if err != nil {
				return fmt.Errorf("read request: %w", err)
			}
			var req policy.Request
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("%w: %v", policy.ErrInvalid, err)
			}

			ctx, cancel := context.WithTimeout(c.Context, cfg.RequestTimeout)
			defer cancel()

			pipeline, cleanup, err := buildPipeline(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			var result any
			switch name {
			case "quote":
				result, err = pipeline.Quote(ctx, req)
			default:
				result, err = pipeline.DecideClaim(ctx, req)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}
