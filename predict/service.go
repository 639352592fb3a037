package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"messforecast/ml"
)

// ErrNotTrained is matched by every NotTrainedError.
var ErrNotTrained = errors.New("no trained model")

// NotTrainedError is returned when a prediction is asked for before any
// dataset has been trained on.
type NotTrainedError struct{}

func (e *NotTrainedError) Error() string {
	return "prediction unavailable: no trained model, upload a dataset first"
}

func (e *NotTrainedError) Is(target error) bool {
	return target == ErrNotTrained
}

// Result is what the presentation layer shows for one query.
type Result struct {
	PredictedAttendance int     `json:"predicted_attendance"`
	ConfidencePercent   float64 `json:"confidence_percent"`
}

// Service holds the active model. Install replaces it wholesale; Predict
// reads whichever model is active at the time of the call.
type Service struct {
	mu     sync.RWMutex
	model  *ml.TrainedModel
	logger *zap.Logger

	trainMu sync.Mutex
}

func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger.With(zap.String("component", "prediction"))}
}

// Install makes model the active model, discarding the previous one.
func (s *Service) Install(model *ml.TrainedModel) {
	if model == nil {
		return
	}
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()

	s.logger.Info("model installed",
		zap.Strings("schema", model.Schema.Names()),
		zap.Float64("mae", model.MAE),
		zap.Float64("confidence_percent", model.Confidence),
		zap.Int("trees", model.Trees))
}

// Model returns the active model.
func (s *Service) Model() (*ml.TrainedModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return nil, &NotTrainedError{}
	}
	return s.model, nil
}

// Train fits a model on table and installs it. Concurrent calls are
// serialised; the last one to finish wins.
func (s *Service) Train(ctx context.Context, table ml.Table, config ml.TrainConfig) (*ml.TrainedModel, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	model, err := ml.Train(ctx, table, config)
	if err != nil {
		return nil, err
	}
	s.Install(model)
	return model, nil
}

// Predict reconciles record against the active schema and runs the model.
// Schema columns missing from record are read as 0, the row is laid out in
// schema order, and extra keys are ignored.
func (s *Service) Predict(record map[string]float64) (Result, error) {
	model, err := s.Model()
	if err != nil {
		return Result{}, err
	}

	row := model.Schema.Project(record)
	value, err := model.Predict(row)
	if err != nil {
		return Result{}, fmt.Errorf("predict: %w", err)
	}

	predicted := math.Round(value)
	if predicted < 0 || math.IsNaN(predicted) {
		predicted = 0
	}
	return Result{
		PredictedAttendance: int(predicted),
		ConfidencePercent:   model.Confidence,
	}, nil
}

// PredictSession predicts from an accumulator snapshot.
func (s *Service) PredictSession(acc *Accumulator) (Result, error) {
	return s.Predict(acc.Snapshot())
}
