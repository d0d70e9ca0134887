// Package main provides the dicehall command line roller. It wires together
// configuration, the dice engine, the local roll ledger, and, when enabled,
// the shared-room backends.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/dicehall/internal/config"
	"github.com/cory-johannsen/dicehall/internal/game/dice"
	"github.com/cory-johannsen/dicehall/internal/identity"
	"github.com/cory-johannsen/dicehall/internal/observability"
	"github.com/cory-johannsen/dicehall/internal/presence"
	"github.com/cory-johannsen/dicehall/internal/room"
	"github.com/cory-johannsen/dicehall/internal/server"
	"github.com/cory-johannsen/dicehall/internal/solo"
	"github.com/cory-johannsen/dicehall/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "dicehall.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	src := dice.NewCryptoSource()
	roller := dice.NewLoggedRoller(src, logger)

	ident, err := identity.LoadOrCreate(cfg.Identity.Path, src)
	if err != nil {
		logger.Fatal("loading identity", zap.Error(err))
	}

	ledger := solo.NewLedger(cfg.Solo.Path, cfg.Solo.MaxEntries, logger)
	if err := ledger.Load(); err != nil {
		logger.Fatal("loading roll ledger", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Room backends are optional; on any failure the roller degrades to
	// solo mode instead of refusing to start.
	var (
		store   room.Store
		feed    room.Feed
		pres    room.Presence
		pool    *postgres.Pool
		tracker *presence.Tracker
	)
	if cfg.Room.Enabled {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Warn("room backend unavailable, running solo", zap.Error(err))
		} else {
			store = postgres.NewStore(pool)
			feed = postgres.NewListener(pool, logger)
			logger.Info("database connected",
				zap.String("host", cfg.Database.Host),
				zap.Int("port", cfg.Database.Port),
				zap.Duration("elapsed", time.Since(dbStart)),
			)

			tracker, err = presence.NewTracker(cfg.Redis, cfg.Room.PresenceTTL, logger)
			if err != nil {
				logger.Warn("presence unavailable, rooms run without member list", zap.Error(err))
			} else {
				pres = tracker
			}
		}
	}

	session := room.NewSession(store, feed, pres, ident.ID, ident.Nickname,
		room.Config{ReconnectBackoff: cfg.Room.ReconnectBackoff}, logger)

	app := &app{
		roller:  roller,
		session: session,
		ledger:  ledger,
		ident:   ident,
		cfg:     cfg,
		logger:  logger,
		out:     os.Stdout,
		in:      os.Stdin,
	}

	lifecycle := server.NewLifecycle(logger)

	if pool != nil {
		p := pool
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				for {
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(30 * time.Second):
					}
					if err := p.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			},
			StopFn: func() {
				p.Close()
			},
		})
	}
	if tracker != nil {
		tr := tracker
		lifecycle.Add("presence", &server.FuncService{
			StartFn: func() error { <-ctx.Done(); return nil },
			StopFn:  func() { _ = tr.Close() },
		})
	}

	lifecycle.Add("repl", &server.FuncService{
		StartFn: func() error {
			err := app.run(ctx)
			// A finished REPL (quit or EOF) shuts the whole process down.
			cancel()
			return err
		},
		StopFn: func() {
			session.Leave()
			if err := ledger.Save(); err != nil {
				logger.Warn("saving roll ledger", zap.Error(err))
			}
		},
	})

	logger.Info("roller initialized",
		zap.String("nickname", ident.Nickname),
		zap.Bool("rooms", store != nil),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("roller error", zap.Error(err))
	}
}

// loadConfig reads the config file, falling back to defaults when the file
// does not exist so a bare invocation still rolls solo.
func loadConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return config.Load(path)
}
