package cli

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/ImShyMike/hcb/internal/controllers"
	"github.com/ImShyMike/hcb/internal/router"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(opts *Options) *cobra.Command {
	var noSchedule bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the operations API and run the pipeline periodically",
		Long: `Serve health, version, metrics, balance and anomaly endpoints on
LISTEN_ADDR. Every SYNC_INTERVAL, a nightly run over the last LOOKBACK_DAYS
days is started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts, !noSchedule)
		},
	}

	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "only serve the API, do not run the pipeline")

	return cmd
}

func serve(ctx context.Context, opts *Options, schedule bool) error {
	var apiURL *url.URL
	if opts.Config.APIURL != "" {
		u, err := url.Parse(opts.Config.APIURL)
		if err != nil {
			return err
		}
		apiURL = u
	}

	r, teardown, err := router.Config(apiURL)
	defer teardown()
	if err != nil {
		return err
	}
	router.AttachRoutes(controllers.Controller{DB: opts.DB}, r.Group("/"), opts.Config.EnablePprof)

	server := &http.Server{
		Addr:              opts.Config.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("Starting operations API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if schedule {
		e := opts.engine()
		g.Go(func() error {
			every(ctx, opts.Config.SyncInterval, func(ctx context.Context) {
				start := opts.now().Add(-opts.Config.Lookback())
				if _, err := e.Nightly(ctx, start); err != nil && ctx.Err() == nil {
					log.Error().Err(err).Msg("scheduled run failed")
				}
			})
			return nil
		})
	}

	return g.Wait()
}

// every calls fn each interval until ctx is done. Calls never overlap, a
// tick during a call is dropped.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			fn(ctx)
		}
	}
}
