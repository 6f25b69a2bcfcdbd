package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/matchpulse/matchpulse/go/clients/sofascore"
	"github.com/matchpulse/matchpulse/go/clients/sportsdb"
	"github.com/matchpulse/matchpulse/go/internal/collector"
	"github.com/matchpulse/matchpulse/go/internal/config"
	"github.com/matchpulse/matchpulse/go/internal/dbconfig"
	"github.com/matchpulse/matchpulse/go/internal/events"
	"github.com/matchpulse/matchpulse/go/internal/normalize"
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

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := events.NewRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	sofascoreBucket, err := ratelimit.NewTokenBucket(cfg.Providers.Sofascore.Capacity, cfg.Providers.Sofascore.FillRate)
	if err != nil {
		log.Fatal().Err(err).Msg("create sofascore rate limiter")
	}
	sportsDBBucket, err := ratelimit.NewTokenBucket(cfg.Providers.SportsDB.Capacity, cfg.Providers.SportsDB.FillRate)
	if err != nil {
		log.Fatal().Err(err).Msg("create thesportsdb rate limiter")
	}

	leagues := make([]sportsdb.League, 0, len(cfg.Providers.SportsDB.Leagues))
	for _, l := range cfg.Providers.SportsDB.Leagues {
		leagues = append(leagues, sportsdb.League{ID: l.ID, Season: l.Season})
	}

	providers := []collector.Provider{
		sofascore.NewClient(sofascoreBucket),
		sportsdb.NewClient(cfg.Providers.SportsDB.APIKey, leagues, sportsDBBucket),
	}

	c := collector.NewCollector(repo, normalize.NewNormalizer(), providers)
	results := c.Run(ctx)

	failed := false
	for _, result := range results {
		for _, err := range result.Errors {
			log.Error().Err(err).Str("source", result.Source).Msg("sweep error")
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
