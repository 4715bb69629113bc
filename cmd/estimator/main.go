// Command estimator wires the estimation service together: configuration,
// secrets, persistence, the protected LLM client chain, and the engines, then
// serves health and metrics endpoints until shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"estimator/internal/factory"
	"estimator/pkg/budget"
	"estimator/pkg/chat"
	"estimator/pkg/config"
	"estimator/pkg/estimator"
	"estimator/pkg/i18n"
	"estimator/pkg/llm/middleware/metrics"
	"estimator/pkg/logx"
	"estimator/pkg/loopguard"
	taskmetrics "estimator/pkg/metrics"
	"estimator/pkg/persistence"
	"estimator/pkg/question"
	"estimator/pkg/ratelimit"
)

// Service holds the wired components for one process.
type Service struct {
	cfg         config.Config
	store       *persistence.Store
	tracker     *budget.Tracker
	limiter     *ratelimit.Limiter
	loops       *loopguard.Manager
	estimator   *estimator.Engine
	questions   *question.Engine
	chat        *chat.Engine
	taskMetrics *taskmetrics.QueryService
	logger      *logx.Logger
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := unlockSecrets(filepath.Dir(configPath)); err != nil {
		log.Fatalf("Failed to unlock secrets: %v", err)
	}

	svc, err := NewService(cfg)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}
	defer func() { _ = svc.store.Close() }()

	srv := svc.httpServer()
	go func() {
		svc.logger.Info("serving health and metrics on %s", cfg.Metrics.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	svc.logger.Info("received signal %v, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	svc.loops.CleanupAll()
	svc.logger.Info("shutdown complete")
}

// unlockSecrets decrypts the secrets file when one exists, prompting for the
// password on the terminal. Without a secrets file, API keys come from the
// environment.
func unlockSecrets(dir string) error {
	if !config.SecretsFileExists(dir) {
		return nil
	}

	fmt.Print("Secrets password: ")
	password, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	secrets, err := config.DecryptSecretsFile(dir, string(password))
	if err != nil {
		return fmt.Errorf("failed to decrypt secrets: %w", err)
	}
	config.SetDecryptedSecrets(secrets)
	return nil
}

// NewService builds every component from the configuration.
func NewService(cfg config.Config) (*Service, error) {
	bundle, err := i18n.New(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to load locale %s: %w", cfg.Language, err)
	}

	store, err := persistence.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	tracker := budget.NewTracker(cfg.LLM.Model, cfg.Budget)
	recorder := metrics.NewPrometheusRecorder()
	breakers := factory.NewBreakerRegistry(&cfg)

	client, err := factory.NewProtectedClient(&cfg, recorder, tracker, breakers)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to build LLM client: %w", err)
	}

	// Per-task spend read-back needs a Prometheus server scraping /metrics;
	// without one the endpoint reports unavailability.
	var queries *taskmetrics.QueryService
	if cfg.Metrics.PrometheusURL != "" {
		queries, err = taskmetrics.NewQueryService(cfg.Metrics.PrometheusURL)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to build metrics query service: %w", err)
		}
	}

	return &Service{
		cfg:     cfg,
		store:   store,
		tracker: tracker,
		limiter: ratelimit.New(cfg.RateLimit),
		loops:   loopguard.NewManager(cfg.Estimator.MaxIterations),
		estimator: estimator.New(client, bundle, estimator.Config{
			DailyUnitCost: cfg.Locale.DailyUnitCost,
			TaxRate:       cfg.Locale.TaxRate,
			MaxTokens:     cfg.LLM.MaxTokens,
			MaxParallel:   cfg.Estimator.MaxParallel,
		}),
		questions: question.New(client, bundle),
		chat: chat.New(client, bundle, store, store, chat.Config{
			DailyUnitCost: cfg.Locale.DailyUnitCost,
			TaxRate:       cfg.Locale.TaxRate,
		}),
		taskMetrics: queries,
		logger:      logx.NewLogger("estimator"),
	}, nil
}

func (s *Service) httpServer() *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	s.routes(mux)

	return &http.Server{
		Addr:              s.cfg.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
