package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/matchpulse/matchpulse/go/clients/sofascore"
	"github.com/matchpulse/matchpulse/go/clients/sportsdb"
	"github.com/matchpulse/matchpulse/go/internal/config"
	"github.com/matchpulse/matchpulse/go/internal/dbconfig"
	"github.com/matchpulse/matchpulse/go/internal/events"
	"github.com/matchpulse/matchpulse/go/internal/monitor"
	"github.com/matchpulse/matchpulse/go/internal/normalize"
	"github.com/matchpulse/matchpulse/go/internal/publish"
	"github.com/matchpulse/matchpulse/go/internal/ratelimit"
)

func main() {
	// load .env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// configure zerolog console output and level
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("LOG_LEVEL") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	// DB config
	dbCfg := dbconfig.NewConfigFromEnv()
	db, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")

	repo := events.NewRepository(db)

	publisher, err := setupPublisher(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	// The monitor polls event details one at a time, so its sofascore bucket
	// uses the monitor override rather than the bulk-sweep rate.
	sofascoreBucket, err := ratelimit.NewTokenBucket(
		cfg.Providers.Sofascore.Monitor.Capacity, cfg.Providers.Sofascore.Monitor.FillRate)
	if err != nil {
		log.Fatal().Err(err).Msg("create sofascore rate limiter")
	}
	sportsDBBucket, err := ratelimit.NewTokenBucket(cfg.Providers.SportsDB.Capacity, cfg.Providers.SportsDB.FillRate)
	if err != nil {
		log.Fatal().Err(err).Msg("create thesportsdb rate limiter")
	}

	adapters := map[string]monitor.ProviderAdapter{
		normalize.SourceSofascore: sofascore.NewClient(sofascoreBucket),
		normalize.SourceSportsDB:  sportsdb.NewClient(cfg.Providers.SportsDB.APIKey, toLeagues(cfg.Providers.SportsDB.Leagues), sportsDBBucket),
	}

	monitorCfg := monitor.Config{
		ActivePollInterval:  cfg.ActivePollInterval(),
		HibernationInterval: cfg.HibernationInterval(),
		ProximityBuffer:     cfg.ProximityBuffer(),
		CycleFailureBackoff: cfg.CycleFailureBackoff(),
	}
	mon := monitor.NewMonitor(repo, adapters, normalize.NewNormalizer(), publisher, monitorCfg)

	// signal-aware context
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- mon.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		select {
		case <-errCh:
		case <-shutdownCtx.Done():
		}
		log.Info().Msg("graceful shutdown complete")

	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("monitor exited unexpectedly")
		}
	}
}

func setupPublisher(cfg *config.Config) (publish.Publisher, error) {
	switch cfg.Publish.Backend {
	case "redis":
		return publish.NewRedisPublisher(config.RedisAddr(), cfg.Publish.Topic)
	case "nats":
		jsCfg := publish.DefaultJetStreamConfig()
		jsCfg.URL = config.NATSURL()
		jsCfg.Subject = cfg.Publish.Topic
		return publish.NewJetStreamPublisher(jsCfg)
	default:
		return publish.NewLogPublisher(), nil
	}
}

func toLeagues(leagues []config.League) []sportsdb.League {
	out := make([]sportsdb.League, 0, len(leagues))
	for _, l := range leagues {
		out = append(out, sportsdb.League{ID: l.ID, Season: l.Season})
	}
	return out
}
