package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"messforecast/logging"
	"messforecast/ml"
	"messforecast/pipeline"
)

type args struct {
	Data      string  `arg:"--data,required" help:"attendance CSV with a header row"`
	Target    string  `arg:"--target" default:"students_present" help:"label column"`
	ModelPath string  `arg:"--model-path" help:"write a model snapshot here"`
	Seed      int64   `arg:"--seed" default:"42" help:"split and bootstrap seed"`
	Trees     int     `arg:"--trees" default:"200" help:"number of trees"`
	TestRatio float64 `arg:"--test-ratio" default:"0.2" help:"share of rows held out for evaluation"`
	MaxDepth  int     `arg:"--max-depth" default:"0" help:"tree depth limit, 0 for unlimited"`
	LogLevel  string  `arg:"--log-level" default:"info"`
}

func (args) Description() string {
	return "train_model fits the attendance forest offline and reports its metrics"
}

func main() {
	var a args
	arg.MustParse(&a)

	logger, err := logging.New(logging.Options{Level: a.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ds, err := pipeline.LoadFile(a.Data, a.Target)
	if err != nil {
		logger.Fatal("load dataset failed", zap.String("file", a.Data), zap.Error(err))
	}

	issues := pipeline.NewRecordAuditor().Audit(ds)
	for _, issue := range issues {
		logger.Warn("quality issue",
			zap.Int("line", issue.Line),
			zap.String("column", issue.Column),
			zap.String("message", issue.Message))
	}

	model, err := ml.Train(ctx, ds, ml.TrainConfig{
		Seed:      a.Seed,
		TestRatio: a.TestRatio,
		Trees:     a.Trees,
		MaxDepth:  a.MaxDepth,
	})
	if err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}

	fmt.Printf("dataset:    %s (%d rows, %d quality issues)\n", ds.Name, ds.Len(), len(issues))
	fmt.Printf("schema:     %s\n", strings.Join(model.Schema.Names(), ", "))
	fmt.Printf("split:      %d train / %d eval\n", model.TrainRows, model.EvalRows)
	fmt.Printf("mae:        %.2f\n", model.MAE)
	fmt.Printf("confidence: %.2f%%\n", model.Confidence)

	if a.ModelPath != "" {
		if err := model.Save(a.ModelPath); err != nil {
			logger.Fatal("save model failed", zap.String("path", a.ModelPath), zap.Error(err))
		}
		fmt.Printf("model saved to %s\n", a.ModelPath)
	}
}
