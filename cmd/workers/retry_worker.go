package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"portfolio-slides/slide-service/internal/app"
	"portfolio-slides/slide-service/internal/config"
	"portfolio-slides/slide-service/internal/onboarding"
)

// Pipeline is the part of the onboarding service the worker drives
type Pipeline interface {
	RetryableSubmissions(ctx context.Context, maxAttempts, limit int) ([]*onboarding.Submission, error)
	Retry(ctx context.Context, id uuid.UUID) (*onboarding.PipelineResult, error)
}

// RetryWorker re-runs failed onboarding submissions on a cron schedule
type RetryWorker struct {
	pipeline Pipeline
	logger   *zap.Logger
	config   RetryWorkerConfig
}

// RetryWorkerConfig configuration for the retry worker
type RetryWorkerConfig struct {
	Schedule         string
	BatchSize        int
	MaxConcurrent    int
	MaxAttempts      int
	ExecutionTimeout time.Duration
}

// DefaultRetryWorkerConfig returns default configuration
func DefaultRetryWorkerConfig() RetryWorkerConfig {
	return RetryWorkerConfig{
		Schedule:         "@every 5m",
		BatchSize:        20,
		MaxConcurrent:    2,
		MaxAttempts:      3,
		ExecutionTimeout: 10 * time.Minute,
	}
}

// NewRetryWorker creates a new retry worker
func NewRetryWorker(pipeline Pipeline, logger *zap.Logger, config RetryWorkerConfig) *RetryWorker {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	return &RetryWorker{
		pipeline: pipeline,
		logger:   logger,
		config:   config,
	}
}

// Start runs a pass immediately, then on every schedule tick until ctx is done
func (w *RetryWorker) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.config.Schedule, func() { w.processFailed(ctx) }); err != nil {
		return fmt.Errorf("invalid retry schedule %q: %w", w.config.Schedule, err)
	}

	w.logger.Info("Starting retry worker",
		zap.String("schedule", w.config.Schedule),
		zap.Int("max_concurrent", w.config.MaxConcurrent),
		zap.Int("max_attempts", w.config.MaxAttempts))

	w.processFailed(ctx)
	c.Start()

	<-ctx.Done()
	w.logger.Info("Retry worker shutting down")
	<-c.Stop().Done()
	return nil
}

// processFailed retries one batch of failed submissions
func (w *RetryWorker) processFailed(ctx context.Context) int {
	submissions, err := w.pipeline.RetryableSubmissions(ctx, w.config.MaxAttempts, w.config.BatchSize)
	if err != nil {
		w.logger.Error("Failed to list failed submissions", zap.Error(err))
		return 0
	}
	if len(submissions) == 0 {
		return 0
	}

	w.logger.Info("Retrying failed submissions", zap.Int("count", len(submissions)))

	sem := make(chan struct{}, w.config.MaxConcurrent)
	var wg sync.WaitGroup
	for _, sub := range submissions {
		sem <- struct{}{}
		wg.Add(1)
		go func(sub *onboarding.Submission) {
			defer wg.Done()
			defer func() { <-sem }()
			w.retry(ctx, sub)
		}(sub)
	}
	wg.Wait()
	return len(submissions)
}

func (w *RetryWorker) retry(ctx context.Context, sub *onboarding.Submission) {
	if w.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.ExecutionTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := w.pipeline.Retry(ctx, sub.ID)
	if err != nil {
		w.logger.Error("Submission retry failed",
			zap.String("submission_id", sub.ID.String()),
			zap.Error(err))
		return
	}

	w.logger.Info("Submission retried",
		zap.String("submission_id", sub.ID.String()),
		zap.String("company", sub.CompanyName),
		zap.Bool("success", result.Success),
		zap.Duration("duration", time.Since(start)))
}

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := app.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Database.URL == "" {
		logger.Fatal("DATABASE_URL is required: the worker retries submissions stored by the API")
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", zap.Error(err))
	}
	defer a.Close()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	workerConfig := DefaultRetryWorkerConfig()
	workerConfig.Schedule = cfg.Worker.Schedule
	workerConfig.MaxConcurrent = cfg.Worker.MaxConcurrent
	workerConfig.MaxAttempts = cfg.Worker.MaxAttempts
	workerConfig.BatchSize = cfg.Worker.BatchSize

	worker := NewRetryWorker(a.Service, logger, workerConfig)
	if err := worker.Start(ctx); err != nil {
		logger.Error("Worker error", zap.Error(err))
	}

	logger.Info("Retry worker stopped")
}
