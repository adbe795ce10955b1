package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/npinheiro/converse/internal/api"
	"github.com/npinheiro/converse/internal/auth"
	"github.com/npinheiro/converse/internal/cache"
	"github.com/npinheiro/converse/internal/config"
	"github.com/npinheiro/converse/internal/logger"
	"github.com/npinheiro/converse/internal/server"
	"github.com/npinheiro/converse/internal/stats"
	"github.com/npinheiro/converse/internal/store"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	configPath     string
	addr           string
	dsn            string
	redisAddr      string
	signingSecret  string
	nodeId         int64
	debug          bool
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&configPath, "config", "", "path to YAML config file; flags are ignored when set")
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address")
	flag.StringVar(&signingSecret, "signing-secret", "", "base64 encoded token signing secret")
	flag.Int64Var(&nodeId, "node-id", 0, "snowflake node id, unique per instance")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.New(addr, dsn, redisAddr, signingSecret, allowedOrigins)
		if cfg != nil {
			cfg.Debug = debug
		}
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Debug)
	defer log.Sync()

	pg, err := store.NewPostgres(cfg.DatabaseDSN, nodeId)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer pg.Close()

	if err := pg.Migrate(); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	rds, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rds.Close()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	chatServer, err := server.NewChatServer(log, pg, pg, pg,
		cache.NewRedisPresenceCache(rds), cache.NewRedisUnreadCounter(rds),
		statsUpdater, time.Duration(cfg.StoreTimeout))
	if err != nil {
		return fmt.Errorf("new chat server: %w", err)
	}

	tokens := auth.NewJWTManager(cfg.SigningKey, time.Duration(cfg.TokenExpiry))

	app := api.NewApp(mux, log, chatServer, pg, pg, pg, tokens, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if err := chatServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("chat server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown complete")
	return nil
}
