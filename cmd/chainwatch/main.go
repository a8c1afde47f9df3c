// Command chainwatch runs the supply-chain risk monitoring pipeline:
// ingestion, extraction, scoring, alerting, and the HTTP query surface,
// all wired against a single SQLite store and a Redis Streams substrate.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/chainwatch/internal/alerting"
	"github.com/aristath/chainwatch/internal/backup"
	"github.com/aristath/chainwatch/internal/config"
	"github.com/aristath/chainwatch/internal/embeddings"
	"github.com/aristath/chainwatch/internal/events"
	"github.com/aristath/chainwatch/internal/extraction"
	"github.com/aristath/chainwatch/internal/ingestion"
	"github.com/aristath/chainwatch/internal/llm"
	"github.com/aristath/chainwatch/internal/logging"
	"github.com/aristath/chainwatch/internal/scoring"
	"github.com/aristath/chainwatch/internal/server"
	"github.com/aristath/chainwatch/internal/store"
	"github.com/aristath/chainwatch/internal/streams"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Config{Level: "info", Pretty: true}).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: true})
	log.Info().Msg("starting chainwatch")

	st, err := store.Open(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	stream, err := streams.New(cfg.RedisURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct redis streams client")
	}
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	pingErr := stream.Ping(ctx)
	cancel()
	if pingErr != nil {
		log.Fatal().Err(pingErr).Msg("failed to reach redis")
	}

	bus := events.NewBus(log)

	company, err := st.Companies.Get()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load company profile")
	}

	relevance := embeddings.NewRelevanceFilter(cfg.RelevanceThreshold, bus)
	if company != nil {
		relevance.SetCompanyProfile(company)
	} else {
		log.Warn().Msg("no company profile seeded; relevance filter has an empty keyword vector until one is seeded")
	}

	graphCache := scoring.NewGraphCache(st.Suppliers, bus)

	fastExtractor := llm.NewExtractor(cfg.AnthropicAPIKey, cfg.ExtractionModelFast, log)
	smartExtractor := llm.NewExtractor(cfg.AnthropicAPIKey, cfg.ExtractionModelSmart, log)
	recommender := llm.NewRecommender(cfg.AnthropicAPIKey, cfg.RecommendationModel, log)

	extractionStage := extraction.New(st, stream, relevance, fastExtractor, smartExtractor, cfg, log)
	scoringStage := scoring.New(st, stream, graphCache, cfg, log)
	alertingStage := alerting.New(st, stream, recommender, cfg, log)

	scheduler := ingestion.NewScheduler(nil, st, stream, cfg.FetchInterval(), cfg.DedupTTL(), log)

	httpServer := server.New(server.Config{
		Log:     log,
		Store:   st,
		Stream:  stream,
		Port:    cfg.Port,
		DevMode: os.Getenv("CHAINWATCH_DEV") == "true",
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Each stage's Run spawns its own worker pool and returns immediately;
	// only the HTTP server blocks, so it alone needs its own goroutine.
	if err := extractionStage.Run(runCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to start extraction stage")
	}
	if err := scoringStage.Run(runCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to start scoring stage")
	}
	if err := alertingStage.Run(runCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to start alerting stage")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Run(runCtx); err != nil {
			log.Error().Err(err).Msg("http server exited with error")
		}
	}()

	scheduler.Start(runCtx)

	if cfg.Backup.Bucket != "" {
		r2, err := backup.NewR2Client(runCtx, cfg.Backup)
		if err != nil {
			log.Error().Err(err).Msg("failed to construct r2 client; periodic snapshots disabled")
		} else {
			backupService := backup.NewService(r2, func() string { return cfg.DataDir + "/chainwatch.db" }, cfg.DataDir+"/backup-staging", log)
			wg.Add(1)
			go func() {
				defer wg.Done()
				runBackupLoop(runCtx, backupService, log)
			}()
		}
	} else {
		log.Info().Msg("backup bucket not configured; periodic snapshots disabled")
	}

	<-runCtx.Done()
	log.Info().Msg("shutdown signal received, stopping stages")

	scheduler.Stop()
	extractionStage.Stop()
	scoringStage.Stop()
	alertingStage.Stop()

	wg.Wait()
	log.Info().Msg("chainwatch stopped")
}

const (
	backupInterval      = 24 * time.Hour
	backupRetentionDays = 30
	backupMinKeep       = 7
)

// runBackupLoop snapshots the store once a day and rotates old archives,
// the way the ingestion scheduler runs its own ticker-driven poll loop.
func runBackupLoop(ctx context.Context, svc *backup.Service, log zerolog.Logger) {
	ticker := time.NewTicker(backupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.CreateAndUpload(ctx); err != nil {
				log.Error().Err(err).Msg("backup failed")
				continue
			}
			if err := svc.Rotate(ctx, backupRetentionDays, backupMinKeep); err != nil {
				log.Error().Err(err).Msg("backup rotation failed")
			}
		}
	}
}
