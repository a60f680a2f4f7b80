// Package main is the Glim notification server.
//
// main only wires things together: config, database, repositories, the
// realtime hub, services, handlers, routes. There are no globals; every
// dependency is built here and passed down.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/cors"

	"github.com/glimsocial/glim/config"
	"github.com/glimsocial/glim/database"
	"github.com/glimsocial/glim/middleware"
	"github.com/glimsocial/glim/pkg/i18n"
	"github.com/glimsocial/glim/repository"
	"github.com/glimsocial/glim/ws"
)

const sessionSweepInterval = time.Hour

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] glim server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ─── 2. Database ───
	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] failed to open embedded migrations: %v", err)
	}
	db, err := database.New(cfg.Database.Path, migrations)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. i18n ───
	locales, err := fs.Sub(i18n.EmbeddedLocales, "locales")
	if err != nil {
		log.Fatalf("[main] failed to open embedded locales: %v", err)
	}
	if err := i18n.Load(locales); err != nil {
		log.Fatalf("[main] failed to load i18n translations: %v", err)
	}

	// ─── 4. Repositories, hub, services ───
	clk := clock.New()
	repos := initRepositories(db)

	hub := ws.NewHub(clk, cfg.Realtime.PongWait)
	go hub.Run()

	svcs, limiters, err := initServices(ctx, db.Conn, repos, hub, clk, cfg)
	if err != nil {
		log.Fatalf("[main] failed to initialize services: %v", err)
	}
	defer limiters.Login.Stop()

	go sweepSessions(ctx, clk, repos.Session)

	// ─── 5. Handlers and routes ───
	authMw := middleware.NewAuthMiddleware(svcs.Auth, repos.User)
	defer authMw.Close()

	h := initHandlers(svcs, repos, limiters, hub, cfg, authMw.Invalidate)

	mux := http.NewServeMux()
	initRoutes(mux, h, authMw)

	// ─── 6. CORS ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	// ─── 7. HTTP server ───
	// WriteTimeout stays 0: hijacked WebSocket connections manage their own
	// deadlines in the pumps.
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           corsHandler.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	// ─── 8. Graceful shutdown ───
	<-ctx.Done()
	log.Println("[main] shutting down...")

	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped gracefully")
}

// sweepSessions deletes expired refresh sessions until ctx is done.
func sweepSessions(ctx context.Context, clk clock.Clock, sessions repository.SessionRepository) {
	ticker := clk.Ticker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.DeleteExpired(ctx); err != nil {
				log.Printf("[main] session sweep failed: %v", err)
			}
		}
	}
}
