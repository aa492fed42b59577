package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maildigest-service/internal/infrastructure/config"
	"maildigest-service/internal/infrastructure/oauth"
	"maildigest-service/internal/infrastructure/persistence"
	gmailRepo "maildigest-service/internal/interface/gmail"
	"maildigest-service/internal/interface/repository"
	"maildigest-service/internal/usecase"
	"maildigest-service/pkg/logger"
	"maildigest-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	// Create logger
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting Maildigest Service", "version", cfg.AppVersion)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up MongoDB connection for the message log
	log.Info("Connecting to MongoDB")
	mongoClient, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	mongoDB := persistence.GetDatabase(mongoClient, cfg.MongoDB)

	// Set up PostgreSQL connection for the report store
	gormDB, err := gorm.Open(postgres.Open(cfg.PostgresURI), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}

	// Set up repositories
	reportRepo, err := repository.NewGormReportRepository(gormDB, log)
	if err != nil {
		log.Fatal("Failed to set up report repository", "error", err)
	}
	messageLogRepo := repository.NewMongoMessageLogRepository(mongoDB)
	summarizer := repository.NewAnthropicSummarizer(
		cfg.AnthropicBaseURL,
		cfg.AnthropicAPIKey,
		cfg.AnthropicModel,
		cfg.AnthropicTimeout,
		cfg.MaxRetries,
		cfg.BackoffBase,
		cfg.BackoffMax,
		log,
	)

	// Set up Gmail OAuth and the mail source
	gmailOAuth := oauth.NewGmailOAuth(
		cfg.GmailClientID,
		cfg.GmailClientSecret,
		cfg.GmailRefreshToken,
		log,
	)
	mailRepo, err := gmailRepo.NewGmailMailRepository(ctx, gmailOAuth.GetTokenSource(ctx), log)
	if err != nil {
		log.Fatal("Failed to create Gmail repository", "error", err)
	}

	// Set up the digest pipeline
	m := metrics.NewMetrics("maildigest")
	rules := usecase.LoadRuleTable(cfg.ScoreRulesPath, log)
	pipeline := usecase.NewReportPipeline(
		mailRepo,
		messageLogRepo,
		summarizer,
		usecase.NewNormalizer(log),
		usecase.NewThreadMerger(cfg.CombinedTextMax, log),
		usecase.NewImportanceScorer(rules, cfg.HighThreshold, cfg.MediumThreshold, log),
		usecase.NewPromptComposer(cfg.MaxConversations, log),
		usecase.NewReportAssembler(reportRepo, log),
		usecase.FetchOptions{
			UnreadOnly:  cfg.FetchUnreadOnly,
			StarredOnly: cfg.FetchStarredOnly,
			Sender:      cfg.FetchSender,
			Keyword:     cfg.FetchKeyword,
			MaxResults:  cfg.GmailMaxResults,
		},
		m,
		log,
	)

	// Set up HTTP server
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})

	mux.HandleFunc("/api/v1/reports/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		date, err := parseDateParam(r, time.Now().UTC())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		reportID, err := pipeline.RunForDate(r.Context(), date)
		if err != nil {
			http.Error(w, "pipeline run failed", http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]interface{}{
			"reportId": reportID,
			"date":     date.Format("2006-01-02"),
		})
	})

	mux.HandleFunc("/api/v1/reports", func(w http.ResponseWriter, r *http.Request) {
		if date := r.URL.Query().Get("date"); date != "" {
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				http.Error(w, "invalid date", http.StatusBadRequest)
				return
			}
			report, err := reportRepo.GetByDate(r.Context(), day)
			if err != nil {
				http.Error(w, "lookup failed", http.StatusInternalServerError)
				return
			}
			if report == nil {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			writeJSON(w, report)
			return
		}

		from, to, err := parseRangeParams(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		summaries, err := reportRepo.ListReports(r.Context(), from, to)
		if err != nil {
			http.Error(w, "listing failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, summaries)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop any in-flight run

	// Disconnect from MongoDB
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}

	log.Info("Maildigest Service stopped")
}

func parseDateParam(r *http.Request, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parseRangeParams(r *http.Request) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, nil, err
		}
		to = &t
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
