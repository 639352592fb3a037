package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"messforecast/config"
	"messforecast/db"
	mhttp "messforecast/http"
	"messforecast/logging"
	"messforecast/ml"
	"messforecast/pipeline"
	"messforecast/predict"
)

type args struct {
	Config string `arg:"-c,--config" default:"config.yaml" help:"path to the YAML config file"`
}

func (args) Description() string {
	return "messforecast serves mess-hall attendance predictions over HTTP"
}

func main() {
	var a args
	arg.MustParse(&a)

	// 1. Load config
	cfg, err := config.Load(a.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger
	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("messforecast stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Training log
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open training log: %w", err)
	}
	defer store.Close()
	logger.Info("training log opened", zap.String("path", cfg.Database.Path))

	// 4. Prediction core, optionally warm-started from a snapshot
	service := predict.NewService(logger)
	if cfg.ML.ModelPath != "" {
		model, err := ml.LoadModel(cfg.ML.ModelPath)
		switch {
		case err == nil:
			service.Install(model)
		case errors.Is(err, os.ErrNotExist):
			logger.Info("no model snapshot yet, waiting for a dataset upload", zap.String("path", cfg.ML.ModelPath))
		default:
			logger.Warn("model snapshot ignored", zap.String("path", cfg.ML.ModelPath), zap.Error(err))
		}
	}

	trainer := mhttp.NewTrainer(mhttp.TrainerConfig{
		Target:    cfg.Dataset.Target,
		ModelPath: cfg.ML.ModelPath,
		Train: ml.TrainConfig{
			Seed:            cfg.ML.Seed,
			TestRatio:       cfg.ML.TestRatio,
			Trees:           cfg.ML.Trees,
			MaxDepth:        cfg.ML.MaxDepth,
			MinSamplesSplit: cfg.ML.MinSamplesSplit,
			MinSamplesLeaf:  cfg.ML.MinSamplesLeaf,
		},
	}, service, store, logger)

	// 5. Optional drop directory
	if cfg.Dataset.WatchDir != "" {
		if err := os.MkdirAll(cfg.Dataset.WatchDir, 0o755); err != nil {
			return fmt.Errorf("create watch dir: %w", err)
		}
		watcher, err := pipeline.NewDatasetWatcher(pipeline.WatcherConfig{
			Dir:      cfg.Dataset.WatchDir,
			Debounce: cfg.Dataset.Debounce,
		}, trainer.TrainFile, logger)
		if err != nil {
			return err
		}
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	// 6. HTTP server
	sessions, err := mhttp.NewSessionStore(cfg.Sessions.Capacity)
	if err != nil {
		return err
	}
	api := mhttp.NewAPI(service, trainer, sessions, logger, mhttp.APIOptions{
		RequiredFields: cfg.Sessions.RequiredFields,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	})
	server := mhttp.NewServer(mhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		MaxUploadBytes: cfg.Http.MaxUploadBytes,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}, api, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 7. Graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	return nil
}
