package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ServeOptions holds the collector flags.
type ServeOptions struct {
	Addr            string
	ShutdownTimeout time.Duration
	Production      bool
}

// NewRootCommand creates the collector command.
func NewRootCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:          "spresso-collector",
		Short:        "Run a local collector that accepts Spresso event batches",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger()
			if err != nil {
				return errors.Wrap(err, "create logger")
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return Serve(ctx, opts, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Addr, "addr", ":3000", "listen address")
	flags.DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 5*time.Second, "time allowed for in-flight requests on shutdown")
	flags.BoolVar(&opts.Production, "production", false, "log JSON instead of the development console format")
	return cmd
}

func (o *ServeOptions) logger() (*zap.Logger, error) {
	if o.Production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// Serve runs the collector until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, opts *ServeOptions, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              opts.Addr,
		Handler:           NewCollector(logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Collector listening", zap.String("addr", opts.Addr), zap.String("endpoint", "/v1/events"))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		return errors.Wrap(server.Shutdown(shutdownCtx), "shutdown")
	})

	return g.Wait()
}
