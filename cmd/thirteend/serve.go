package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"thirteen/internal/config"
	"thirteen/internal/server"
	"thirteen/internal/store"
)

// ServeCmd runs the tournament server.
type ServeCmd struct {
	Config      string `kong:"default='thirteend.hcl',help='Path to the HCL config file'"`
	Addr        string `kong:"help='Listen address (overrides config)'"`
	Store       string `kong:"help='State store: sqlite or memory (overrides config)'"`
	DBPath      string `kong:"help='SQLite database path (overrides config)'"`
	TargetScore int    `kong:"help='Tournament target score (overrides config)'"`
	Seed        *int64 `kong:"help='Deterministic RNG seed for shuffles (optional)'"`
	Debug       bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.Addr == "" {
		c.Addr = fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	}
	if c.Store == "" {
		c.Store = cfg.Server.Store
	}
	if c.DBPath == "" {
		c.DBPath = cfg.Server.DBPath
	}
	if c.TargetScore == 0 {
		c.TargetScore = cfg.Server.TargetScore
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if c.Debug || cfg.Server.LogLevel == "debug" {
		logger.SetLevel(log.DebugLevel)
	}

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info("using deterministic seed", "seed", seed)
	}
	rng := rand.New(rand.NewSource(seed))

	var (
		conns    store.ConnectionStore
		tourneys store.TourneyStore
	)
	switch c.Store {
	case "memory":
		conns = store.NewMemoryConnections(nil)
		tourneys = store.NewMemoryTourneys()
	case "sqlite":
		db, err := store.OpenSQLite(c.DBPath, nil)
		if err != nil {
			return err
		}
		defer db.Close()
		conns = db.Connections()
		tourneys = db.Tourneys()
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	hub := server.NewHub()
	dispatcher := server.NewDispatcher(logger, conns, tourneys, hub,
		server.WithRand(rng),
		server.WithTargetScore(c.TargetScore),
		server.WithGrace(time.Duration(cfg.Server.DisconnectGraceSec)*time.Second),
		server.WithConnectionTTL(time.Duration(cfg.Server.ConnectionTTLHours)*time.Hour),
	)
	srv := server.NewServer(logger, dispatcher, hub, []byte(cfg.Server.AuthSecret))

	logger.Info("starting thirteend",
		"addr", c.Addr,
		"store", c.Store,
		"target_score", c.TargetScore,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(c.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
