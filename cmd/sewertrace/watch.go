package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dd0wney/sewertrace/pkg/config"
	"github.com/dd0wney/sewertrace/pkg/health"
	"github.com/dd0wney/sewertrace/pkg/watch"
)

var (
	watchMetricsAddr string
	watchDebounce    time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reload the network file on change and serve metrics",
	Long: `Keep the session loaded, rebuild the topology caches whenever the network
YAML file changes, and expose Prometheus metrics and health endpoints on
--metrics-addr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, runWatch)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", ":9464", "Address serving /metrics, /health, /readyz and /healthz (empty disables)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before a change is applied")
}

func runWatch(ctx context.Context, a *app) error {
	if a.cfg.Network.Source != config.SourceYAML {
		return fmt.Errorf("watch needs a yaml network source, got %q", a.cfg.Network.Source)
	}

	hc, reloads := a.healthChecker()
	w, err := watch.New(a.cfg.Network.Path, func(ctx context.Context, path string) error {
		err := a.reload(ctx)
		reloads.Record(time.Now(), err)
		if err != nil {
			return err
		}
		log.Printf("🔄 Network reloaded from %s", path)
		return nil
	}, watch.WithDebounce(watchDebounce), watch.WithLogger(a.logger))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(ctx) })

	if watchMetricsAddr != "" {
		mux := http.NewServeMux()
		hc.Register(mux)
		if a.metrics != nil {
			mux.Handle("/metrics", promhttp.HandlerFor(a.metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
		}
		srv := &http.Server{
			Addr:              watchMetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		log.Printf("📊 Health and metrics available at http://%s", watchMetricsAddr)
	}

	log.Printf("👀 Watching %s (session %s)", a.cfg.Network.Path, a.name)
	err = g.Wait()
	log.Printf("✅ Watch stopped")
	return err
}

// healthChecker registers the checks for the stores this app opened
func (a *app) healthChecker() (*health.HealthChecker, *health.ReloadTracker) {
	hc := health.NewHealthChecker()
	reloads := &health.ReloadTracker{}

	netCheck := health.NetworkCheck(a.source.Stats)
	hc.RegisterCheck("network", netCheck)
	hc.RegisterCheck("reload", reloads.Check)
	hc.RegisterReadinessCheck("network", netCheck)

	if a.pg != nil {
		pg := health.PingCheck("postgres", health.DefaultPingTimeout, a.pg.Ping)
		hc.RegisterCheck("postgres", pg)
		hc.RegisterReadinessCheck("postgres", pg)
	}
	if a.redis != nil {
		rc := health.PingCheck("redis", health.DefaultPingTimeout, func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
		hc.RegisterCheck("redis", rc)
		hc.RegisterReadinessCheck("redis", rc)
	}
	return hc, reloads
}
