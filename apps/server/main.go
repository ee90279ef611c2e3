package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matryer/way"
	log "github.com/sirupsen/logrus"

	"github.com/desireevl/quantum-catsweeper/apps/server/internal/auth"
	"github.com/desireevl/quantum-catsweeper/apps/server/internal/config"
	"github.com/desireevl/quantum-catsweeper/apps/server/internal/gateway"
	"github.com/desireevl/quantum-catsweeper/apps/server/internal/ledger"
	"github.com/desireevl/quantum-catsweeper/apps/server/internal/lobby"
	"github.com/desireevl/quantum-catsweeper/apps/server/internal/metrics"
	"github.com/desireevl/quantum-catsweeper/apps/server/internal/sqldb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Server] Failed to load config: %v", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("[Server] Unknown LOG_LEVEL %q, keeping %s", cfg.LogLevel, log.GetLevel())
	}

	gameCfg, err := cfg.GameConfig()
	if err != nil {
		log.Fatalf("[Server] Invalid game config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancelInit := context.WithTimeout(ctx, 5*time.Second)
	db, err := sqldb.Open(initCtx, cfg.LedgerMode, cfg.LedgerSQLitePath, cfg.LedgerDatabaseURL)
	if err != nil {
		log.Fatalf("[Server] Failed to open database: %v", err)
	}
	if db != nil {
		defer db.Close()
	}
	authService, authMode, err := auth.NewService(initCtx, cfg.AuthMode, db)
	if err != nil {
		log.Fatalf("[Server] Failed to init auth service: %v", err)
	}
	defer authService.Close()
	ledgerService, ledgerMode, err := ledger.New(initCtx, db, ledger.Options{
		RecentLimit: cfg.LedgerRecentLimit,
		SavedLimit:  cfg.LedgerSavedLimit,
	})
	cancelInit()
	if err != nil {
		log.Fatalf("[Server] Failed to init ledger service: %v", err)
	}
	defer ledgerService.Close()

	lby := lobby.New(gameCfg, ledgerService, cfg.SessionIdleTTL)
	lobbyDone := make(chan struct{})
	go func() {
		defer close(lobbyDone)
		lby.Run(ctx)
	}()
	go pruneTokens(ctx, authService)

	gw := gateway.New(lby, authService)

	router := way.NewRouter()
	router.HandleFunc(http.MethodGet, "/ws", gw.HandleWebSocket)
	router.HandleFunc(http.MethodGet, "/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.Handle(http.MethodGet, "/metrics", metrics.Handler())
	auth.NewHTTPHandler(authService).RegisterRoutes(router)
	ledger.NewHTTPHandler(authService, ledgerService).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(log.Fields{
		"auth":   authMode,
		"ledger": ledgerMode,
		"size":   gameCfg.Size,
		"bombs":  gameCfg.BombCount,
	}).Infof("[Server] Starting WebSocket server on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
	// open games are recorded before the deferred closes run
	<-lobbyDone
	log.Info("[Server] Stopped")
}

func pruneTokens(ctx context.Context, m auth.Service) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.PruneExpired(); n > 0 {
				log.Debugf("[Server] Pruned %d expired tokens", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
