// Command proxyd runs the reverse proxy and its admin surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/coreproxy/edgeproxy/internal/admin"
	"github.com/coreproxy/edgeproxy/internal/adminws"
	"github.com/coreproxy/edgeproxy/internal/audit"
	"github.com/coreproxy/edgeproxy/internal/config"
	"github.com/coreproxy/edgeproxy/internal/db"
	"github.com/coreproxy/edgeproxy/internal/db/migrations"
	"github.com/coreproxy/edgeproxy/internal/dbpool"
	"github.com/coreproxy/edgeproxy/internal/proxy"
	"github.com/coreproxy/edgeproxy/internal/staticfiles"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := run(log); err != nil {
		log.WithError(err).Fatal("fatal")
	}
}

func run(log *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	pxCfg, err := proxy.NewConfig(cfg)
	if err != nil {
		return fmt.Errorf("proxy config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure: audit sink, only when a database is configured ---
	var (
		pool        *dbpool.Pool
		auditWorker *audit.Worker
	)
	if cfg.DatabaseURL.Value() != "" {
		pool, err = dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		log.Info("database connected")

		if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		log.Info("migrations applied")

		auditWorker = audit.NewWorker(audit.NewStore(pool), log, 0)
	} else {
		log.Info("no database configured, audit sink disabled")
	}

	// --- Core pipeline ---
	pipelineEvents := make(chan proxy.Event, 256)
	handler := proxy.New(pxCfg, log, pipelineEvents)

	hub := adminws.NewHub(log)

	proxySrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           frontDoor(handler, cfg.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var adminSrv *http.Server
	if cfg.EnableAdminUI {
		adminDeps := &admin.Deps{
			Log:         log,
			Handler:     handler,
			Hub:         hub,
			Backends:    cfg.Backends,
			CORSOrigins: cfg.CORSOrigins,
			WriteTokens: cfg.AdminWriteTokens,
			Version:     config.Version,
		}
		adminSrv = &http.Server{
			Addr:              cfg.MetricsAddr(),
			Handler:           admin.NewRouter(ctx, adminDeps),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bridgeEvents(gctx, pipelineEvents, hub, auditWorker)
		return nil
	})

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if auditWorker != nil {
		g.Go(func() error {
			auditWorker.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		log.WithField("addr", proxySrv.Addr).Info("proxy listener starting")
		if err := proxySrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("proxy listener: %w", err)
		}
		return nil
	})

	if adminSrv != nil {
		g.Go(func() error {
			log.WithField("addr", adminSrv.Addr).Info("admin listener starting")
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin listener: %w", err)
			}
			return nil
		})
	}

	<-gctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("shutdown phase 1: stopping HTTP listeners")
	if err := proxySrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("proxy listener shutdown error")
	}
	if adminSrv != nil {
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("admin listener shutdown error")
		}
	}

	log.Info("shutdown phase 2: draining audit worker and event hub")
	if err := g.Wait(); err != nil {
		log.WithError(err).Warn("goroutine exited with error")
	}

	if pool != nil {
		log.Info("shutdown phase 3: closing database pool")
		pool.Close()
	}

	log.Info("shutdown complete")
	return nil
}

// frontDoor dispatches /static/ requests to the static handler and
// everything else to the proxy pipeline, per the listener-level routing
// rule ahead of the proxy's own admission/cache/forward logic.
func frontDoor(proxyHandler http.Handler, staticDir string) http.Handler {
	static := staticfiles.Handler(staticDir)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/static/") {
			static.ServeHTTP(w, r)
			return
		}
		proxyHandler.ServeHTTP(w, r)
	})
}

// bridgeEvents fans pipeline events out to the admin event hub and, when
// configured, the audit sink; backend_selected events go to the hub only.
// It returns when ctx is cancelled.
func bridgeEvents(ctx context.Context, events <-chan proxy.Event, hub *adminws.Hub, auditWorker *audit.Worker) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			select {
			case hub.Events() <- ev:
			default:
			}
			if auditWorker != nil && ev.Kind != "backend_selected" {
				auditWorker.Enqueue(&audit.Entry{
					Kind:   audit.Kind(ev.Kind),
					Detail: ev.Detail,
					Bytes:  ev.Bytes,
					Time:   ev.Time,
				})
			}
		}
	}
}
