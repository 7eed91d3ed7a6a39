package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/janisto/canvas-api/internal/app"
	"github.com/janisto/canvas-api/internal/config"
	"github.com/janisto/canvas-api/internal/http/health"
	applog "github.com/janisto/canvas-api/internal/platform/logging"
	"github.com/janisto/canvas-api/internal/platform/metrics"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

// listener pairs a configured http.Server with the socket it serves.
type listener struct {
	name string
	srv  *http.Server
	ln   net.Listener
}

func main() {
	if err := applog.Err(); err != nil {
		applog.LogError(context.Background(), "logger init error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		applog.LogFatal(context.Background(), "config load failed", err)
	}
	if err := applog.SetLevel(cfg.LogLevel); err != nil {
		applog.LogWarn(context.Background(), "log level not applied", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		applog.LogError(context.Background(), "server failed", err)
	}
	if syncErr := applog.Sync(); syncErr != nil {
		applog.LogError(context.Background(), "logger sync error", syncErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// run opens the API listener, plus the admin listener (metrics and health) when enabled, and
// serves until ctx is cancelled or a listener fails.
func run(ctx context.Context, cfg *config.Config) error {
	var collector *metrics.Collector
	if cfg.AdminEnabled() {
		collector = metrics.NewCollector()
	}
	handler := app.New(app.Options{
		Version:         Version,
		MaxRequestBytes: cfg.MaxRequestBytes,
		Metrics:         collector,
	})

	apiLn, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen api on %s: %w", cfg.Addr(), err)
	}
	listeners := []listener{{name: "api", srv: newHTTPServer(handler), ln: apiLn}}

	if collector != nil {
		adminLn, err := net.Listen("tcp", cfg.AdminAddr())
		if err != nil {
			_ = apiLn.Close()
			return fmt.Errorf("listen admin on %s: %w", cfg.AdminAddr(), err)
		}
		listeners = append(listeners, listener{name: "admin", srv: newHTTPServer(adminRouter(collector)), ln: adminLn})
	}

	return serve(ctx, cfg.ShutdownTimeout, listeners...)
}

func newHTTPServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10, // 64 KB
	}
}

// adminRouter serves operational endpoints, kept off the API listener.
func adminRouter(c *metrics.Collector) http.Handler {
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", c.Handler())
	router.Get("/health", health.Handler(Version))
	return router
}

// serve runs every listener until ctx is done or one of them fails, then shuts all of them
// down within shutdownTimeout.
func serve(ctx context.Context, shutdownTimeout time.Duration, listeners ...listener) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, l := range listeners {
		g.Go(func() error {
			applog.LogInfo(gctx, "server listening", zap.String("server", l.name), zap.String("addr", l.ln.Addr().String()))
			if err := l.srv.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", l.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			applog.LogInfo(context.Background(), "shutdown signal received")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, l := range listeners {
			if err := l.srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("%s shutdown: %w", l.name, err))
			}
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	applog.LogInfo(context.Background(), "server exited")
	return err
}
