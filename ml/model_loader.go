package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const snapshotVersion = 1

type modelSnapshot struct {
	Version    int          `json:"version"`
	Features   []string     `json:"features"`
	MAE        float64      `json:"mean_absolute_error"`
	Confidence float64      `json:"confidence_percent"`
	TrainRows  int          `json:"train_rows"`
	EvalRows   int          `json:"eval_rows"`
	Seed       int64        `json:"seed"`
	TrainedAt  time.Time    `json:"trained_at"`
	Trees      [][]TreeNode `json:"trees"`
}

// Save writes the model as a JSON snapshot.
func (m *TrainedModel) Save(path string) error {
	if m == nil || m.estimator == nil {
		return errors.New("model not trained")
	}
	forest, ok := m.estimator.(*RandomForest)
	if !ok || forest.Size() == 0 {
		return fmt.Errorf("cannot snapshot estimator %T", m.estimator)
	}
	snapshot := modelSnapshot{
		Version:    snapshotVersion,
		Features:   m.Schema.Names(),
		MAE:        m.MAE,
		Confidence: m.Confidence,
		TrainRows:  m.TrainRows,
		EvalRows:   m.EvalRows,
		Seed:       m.Seed,
		TrainedAt:  m.TrainedAt,
		Trees:      make([][]TreeNode, 0, forest.Size()),
	}
	for _, tree := range forest.trees {
		snapshot.Trees = append(snapshot.Trees, tree.nodes)
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, payload, 0o600)
}

// LoadModel reads a snapshot written by Save.
func LoadModel(path string) (*TrainedModel, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snapshot modelSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if snapshot.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported model version %d", snapshot.Version)
	}
	schema, err := NewFeatureSchema(snapshot.Features)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	if len(snapshot.Trees) == 0 {
		return nil, fmt.Errorf("model %s has no trees", path)
	}

	forest := &RandomForest{
		config:    ForestConfig{Trees: len(snapshot.Trees), Seed: snapshot.Seed},
		trees:     make([]*RegressionTree, len(snapshot.Trees)),
		nFeatures: schema.Len(),
	}
	for i, nodes := range snapshot.Trees {
		tree := &RegressionTree{nodes: nodes}
		if err := tree.validate(schema.Len()); err != nil {
			return nil, fmt.Errorf("model %s tree %d: %w", path, i, err)
		}
		forest.trees[i] = tree
	}

	return &TrainedModel{
		Schema:     schema,
		MAE:        snapshot.MAE,
		Confidence: snapshot.Confidence,
		TrainRows:  snapshot.TrainRows,
		EvalRows:   snapshot.EvalRows,
		Trees:      len(snapshot.Trees),
		Seed:       snapshot.Seed,
		TrainedAt:  snapshot.TrainedAt,
		estimator:  forest,
	}, nil
}
