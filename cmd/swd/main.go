// Command swd is the Social Weight service. It serves score calculation,
// the tier table, a health check and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/socialweight/socialweight/internal/api"
	"github.com/socialweight/socialweight/internal/app"
	"github.com/socialweight/socialweight/internal/platform"
)

func main() {
	cfg, err := platform.LoadConfig()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("load config")
	}
	log := platform.NewLogger(cfg.AppEnv)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("swd exited")
	}
}

func run(cfg platform.AppConfig, log zerolog.Logger) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel := platform.InitOTel(ctx, log, cfg.Otel, cfg.AppEnv)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	registry := prometheus.NewRegistry()
	platform.MustRegister(registry)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	h := api.NewHandler(a.Engine, a.Config, a, api.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: splitList(cfg.CORSOrigins),
		Production:  cfg.Production(),
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, log)
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("cache", cfg.CacheBackend).Msg("starting swd")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// splitList splits a comma-separated setting, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
