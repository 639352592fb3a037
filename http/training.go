package http

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"messforecast/db"
	"messforecast/ml"
	"messforecast/pipeline"
	"messforecast/predict"
)

const previewRows = 5

// TrainingStore records training runs. *db.Store implements it.
type TrainingStore interface {
	RecordTraining(ctx context.Context, entry db.TrainingLog) (int64, error)
	LoadTrainingLog(ctx context.Context, limit int) ([]db.TrainingLog, error)
}

// TrainerConfig controls how uploaded datasets are trained.
type TrainerConfig struct {
	Target    string
	ModelPath string
	Train     ml.TrainConfig
}

// UploadReport is returned for every accepted dataset.
type UploadReport struct {
	Dataset           string                  `json:"dataset"`
	Rows              int                     `json:"rows"`
	Schema            []string                `json:"schema"`
	TrainRows         int                     `json:"train_rows"`
	EvalRows          int                     `json:"eval_rows"`
	MeanAbsoluteError float64                 `json:"mean_absolute_error"`
	ConfidencePercent float64                 `json:"confidence_percent"`
	QualityIssues     []pipeline.QualityIssue `json:"quality_issues"`
	Preview           []map[string]float64    `json:"preview"`
}

// Trainer is the single path from a CSV to an installed model, shared by
// the upload endpoint and the drop-directory watcher.
type Trainer struct {
	config  TrainerConfig
	service *predict.Service
	auditor *pipeline.RecordAuditor
	store   TrainingStore
	logger  *zap.Logger
}

// NewTrainer builds a trainer. store may be nil.
func NewTrainer(config TrainerConfig, service *predict.Service, store TrainingStore, logger *zap.Logger) *Trainer {
	if config.Target == "" {
		config.Target = pipeline.TargetColumn
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		config:  config,
		service: service,
		auditor: pipeline.NewRecordAuditor(),
		store:   store,
		logger:  logger.With(zap.String("component", "trainer")),
	}
}

// TrainReader loads a CSV stream named name and trains on it.
func (t *Trainer) TrainReader(ctx context.Context, name string, r io.Reader) (*UploadReport, error) {
	ds, err := pipeline.LoadDataset(r, t.config.Target)
	if err != nil {
		t.logger.Warn("dataset rejected", zap.String("dataset", name), zap.Error(err))
		return nil, err
	}
	ds.Name = name
	return t.TrainDataset(ctx, ds)
}

// TrainFile matches pipeline.DatasetHandler.
func (t *Trainer) TrainFile(ctx context.Context, path string) error {
	ds, err := pipeline.LoadFile(path, t.config.Target)
	if err != nil {
		return err
	}
	_, err = t.TrainDataset(ctx, ds)
	return err
}

// TrainDataset audits, trains and installs. The previous model stays
// active when training fails.
func (t *Trainer) TrainDataset(ctx context.Context, ds *pipeline.Dataset) (*UploadReport, error) {
	issues := t.auditor.Audit(ds)
	if len(issues) > 0 {
		t.logger.Warn("dataset has quality issues",
			zap.String("dataset", ds.Name),
			zap.Int("issues", len(issues)))
	}

	start := time.Now()
	model, err := t.service.Train(ctx, ds, t.config.Train)
	if err != nil {
		t.logger.Warn("training failed", zap.String("dataset", ds.Name), zap.Error(err))
		return nil, err
	}
	t.logger.Info("dataset trained",
		zap.String("dataset", ds.Name),
		zap.Int("rows", ds.Len()),
		zap.Duration("took", time.Since(start)))

	if t.config.ModelPath != "" {
		if err := model.Save(t.config.ModelPath); err != nil {
			t.logger.Error("save model failed", zap.String("path", t.config.ModelPath), zap.Error(err))
		}
	}

	if t.store != nil {
		entry := db.TrainingLog{
			Dataset:       ds.Name,
			Rows:          ds.Len(),
			Columns:       len(ds.Columns),
			TrainRows:     model.TrainRows,
			EvalRows:      model.EvalRows,
			MAE:           model.MAE,
			Confidence:    model.Confidence,
			Seed:          model.Seed,
			Trees:         model.Trees,
			QualityIssues: len(issues),
			TrainedAt:     model.TrainedAt,
		}
		if _, err := t.store.RecordTraining(context.WithoutCancel(ctx), entry); err != nil {
			t.logger.Error("record training failed", zap.Error(err))
		}
	}

	if issues == nil {
		issues = []pipeline.QualityIssue{}
	}
	return &UploadReport{
		Dataset:           ds.Name,
		Rows:              ds.Len(),
		Schema:            model.Schema.Names(),
		TrainRows:         model.TrainRows,
		EvalRows:          model.EvalRows,
		MeanAbsoluteError: model.MAE,
		ConfidencePercent: model.Confidence,
		QualityIssues:     issues,
		Preview:           ds.Preview(previewRows),
	}, nil
}

// History lists recent training runs, newest first.
func (t *Trainer) History(ctx context.Context, limit int) ([]db.TrainingLog, error) {
	if t.store == nil {
		return []db.TrainingLog{}, nil
	}
	return t.store.LoadTrainingLog(ctx, limit)
}
