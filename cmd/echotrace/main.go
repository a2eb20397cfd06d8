// Command echotrace is a headless reminder listener. It restores the
// persisted session (or logs in with the given credentials), subscribes to
// the reminder channel and logs every reminder it receives until stopped.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/echotrace/echotrace-go/app"
	"github.com/echotrace/echotrace-go/client"
	"github.com/echotrace/echotrace-go/config"
	"github.com/echotrace/echotrace-go/log"
	"github.com/echotrace/echotrace-go/metrics"
)

func main() {
	var (
		configFile = flag.String("config", "echotrace.yaml", "configuration file")
		username   = flag.String("username", "", "log in with this username instead of restoring a session")
		password   = flag.String("password", "", "password for -username")
	)
	flag.Parse()

	settings := new(config.Settings)
	cfg := config.New(settings, config.WithFile(filepath.Base(*configFile), filepath.Dir(*configFile)))
	if err := cfg.Load(); err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.Watch(); err != nil {
		log.Warn().Err(err).Msg("configuration watching unavailable")
	}

	ctx := context.Background()

	c, err := client.FromSettings(ctx, settings)
	if err != nil {
		log.Error().Err(err).Msg("failed to build client")
		os.Exit(1)
	}
	defer c.Close()

	if *username != "" {
		err = c.Login(ctx, *username, *password)
	} else {
		err = c.Restore(ctx)
	}
	if err != nil {
		log.Error().Err(err).Msg("authentication failed")
		os.Exit(1)
	}

	options := []app.Option{
		app.WithWorker("reminders", func(ctx context.Context) error {
			return listen(ctx, c)
		}),
		app.WithClose("client", func(ctx context.Context) error {
			return c.Close()
		}, 10*time.Second),
	}
	if settings.Metrics.Addr != "" {
		options = append(options, app.WithWorker("metrics", func(ctx context.Context) error {
			return serveMetrics(ctx, settings.Metrics.Addr)
		}))
	}

	if err := app.New(options...).Start(); err != nil {
		log.Error().Err(err).Msg("listener stopped")
		os.Exit(1)
	}
}

// listen subscribes to the reminder channel and logs incoming reminders.
func listen(ctx context.Context, c *client.Client) error {
	ch, err := c.Reminders(ctx)
	if err != nil {
		return err
	}

	log.Info().Bool("enabled", ch.Enabled()).Msg("reminder listener started")

	for {
		select {
		case rem, ok := <-ch.Events():
			if !ok {
				return nil
			}
			log.Info().Str("type", rem.Type).Str("message", rem.Message).Msg("reminder")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
