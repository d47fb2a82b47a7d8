package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/woslots/WO/internal/assets"
	"github.com/woslots/WO/internal/config"
	"github.com/woslots/WO/internal/dispatch"
	"github.com/woslots/WO/internal/registry"
	"github.com/woslots/WO/internal/role"
	"github.com/woslots/WO/internal/server"
	"github.com/woslots/WO/internal/store"
	"github.com/woslots/WO/internal/web"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()

	var players store.PlayerStore
	if cfg.DatabaseURL == "" {
		log.Warn("no database URL set, player data will not survive a restart")
		players = store.NewMemoryStore()
	} else {
		pg, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database unavailable", zap.Error(err))
		}
		players = pg
	}

	lib, err := assets.LoadDir(cfg.AssetsDir, log)
	if err != nil {
		log.Fatal("asset tables unavailable", zap.Error(err))
	}

	reg := registry.New(lib, players, log)
	disp := dispatch.New(reg, log)
	game := server.New(cfg.GameAddr, disp, func(c *server.Conn) role.Role {
		return role.NewLobbyRole(c, reg, log)
	}, log)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: web.SetupRoutes(players, log),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return game.Serve(ctx) })
	g.Go(func() error { return reg.Run(ctx) })
	g.Go(func() error {
		log.Info("web server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return httpSrv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("shutdown complete")
}
