// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/patrol-cli/internal/config"
	"github.com/xkilldash9x/patrol-cli/internal/observability"
	"github.com/xkilldash9x/patrol-cli/internal/service"
)

// newComponents is swapped in tests to inject a fake browser.
var newComponents = service.NewComponents

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Visit every target on a schedule until interrupted",
		Long: `Runs the scheduler: one tick immediately, then every interval plus jitter.
A tick that finds the previous one still running is skipped. Send SIGUSR1 to
request an extra tick.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runPatrol(cmd.Context(), cfg, observability.GetLogger())
		},
	}

	f := runCmd.Flags()
	f.Duration("interval", 5*time.Minute, "time between ticks")
	f.Duration("jitter", 30*time.Second, "maximum random delay added to each interval")
	f.Int("capacity", 100, "number of capture files to keep")
	f.String("metrics-addr", "", "serve prometheus metrics on this address")
	bindFlags(f, map[string]string{
		"interval":     "schedule.interval",
		"jitter":       "schedule.jitter",
		"capacity":     "artifacts.capacity",
		"metrics-addr": "metrics.listen_addr",
	})
	return runCmd
}

// runPatrol blocks until ctx is cancelled. A signal shutdown returns nil.
func runPatrol(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.RequireTargets(); err != nil {
		return err
	}

	components, err := newComponents(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	sched, err := components.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	components.AnnounceStart(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })

	if sigs := triggerSignals(); len(sigs) > 0 {
		trigger := make(chan os.Signal, 1)
		signal.Notify(trigger, sigs...)
		defer signal.Stop(trigger)
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-trigger:
					sched.Trigger()
				}
			}
		})
	}

	if addr := cfg.Metrics().ListenAddr; addr != "" {
		startMetricsServer(gctx, g, addr, logger)
	}

	logger.Info("patrol running.", zap.Int("targets", len(cfg.Targets())))
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("patrol stopped.")
	return nil
}

func startMetricsServer(ctx context.Context, g *errgroup.Group, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("Serving metrics.", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
