package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/adi/internal/ai"
	"github.com/soaringjerry/adi/internal/api"
	"github.com/soaringjerry/adi/internal/metrics"
	"github.com/soaringjerry/adi/internal/middleware"
	"github.com/soaringjerry/adi/internal/services"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.UsesDevSecret() {
		logger.Warn("auth.jwt_secret is the development default; set ADI_JWT_SECRET in production")
	}

	var gen services.TextGenerator
	if cfg.AIEnabled() {
		g, err := ai.NewGeminiGenerator(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.GetAITimeout())
		if err != nil {
			return err
		}
		gen = g
	} else {
		logger.Info("AI narratives disabled: no API key configured")
	}

	router := api.NewRouter(api.Options{
		Store:     store,
		Logger:    logger,
		Metrics:   metrics.New(),
		Auth:      middleware.NewAuth(cfg.Auth.JWTSecret),
		Generator: gen,
		Config:    cfg,
	})
	mux := http.NewServeMux()
	router.Register(mux)
	mountFrontend(mux)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.Handler(mux),
		ReadTimeout:       cfg.GetReadTimeout(),
		ReadHeaderTimeout: cfg.GetReadTimeout(),
		WriteTimeout:      cfg.GetWriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr), zap.String("commit", cfg.Build.Commit))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// mountFrontend serves the web client: static files when server.static_dir
// is set, otherwise a proxy to the dev server at server.dev_frontend_url.
func mountFrontend(mux *http.ServeMux) {
	if dir := cfg.Server.StaticDir; dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(dir)))
		return
	}
	devURL := cfg.Server.DevFrontendURL
	if devURL == "" {
		return
	}
	u, err := url.Parse(devURL)
	if err != nil {
		logger.Warn("invalid dev frontend url", zap.String("url", devURL), zap.Error(err))
		return
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ModifyResponse = func(res *http.Response) error {
		middleware.SetNoStore(res.Header)
		return nil
	}
	mux.Handle("/", rp)
}
