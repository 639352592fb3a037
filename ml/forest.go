package ml

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
)

const DefaultTrees = 200

// ForestConfig configures a bagged ensemble of regression trees.
type ForestConfig struct {
	Trees   int
	Seed    int64
	Workers int
	Tree    TreeConfig
}

// RandomForest averages the output of bootstrap-trained regression trees.
// Every split considers all features.
type RandomForest struct {
	config    ForestConfig
	trees     []*RegressionTree
	nFeatures int
}

func NewRandomForest(config ForestConfig) *RandomForest {
	if config.Trees <= 0 {
		config.Trees = DefaultTrees
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.Workers > config.Trees {
		config.Workers = config.Trees
	}
	return &RandomForest{config: config}
}

// Fit trains every tree on its own bootstrap sample. Tree i draws from a
// source seeded with Seed+i, so the fitted forest does not depend on how
// the trees were scheduled across workers.
func (f *RandomForest) Fit(ctx context.Context, features [][]float64, labels []float64) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	width := len(features[0])
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}

	trees := make([]*RegressionTree, f.config.Trees)
	jobs := make(chan int)
	errs := make([]error, f.config.Trees)

	var wg sync.WaitGroup
	for w := 0; w < f.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rnd := rand.New(rand.NewSource(f.config.Seed + int64(i)))
				sample := bootstrap(len(features), rnd)
				tree := NewRegressionTree(f.config.Tree)
				if err := tree.Fit(features, labels, sample, rnd); err != nil {
					errs[i] = fmt.Errorf("tree %d: %w", i, err)
					continue
				}
				trees[i] = tree
			}
		}()
	}

dispatch:
	for i := 0; i < f.config.Trees; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	f.trees = trees
	f.nFeatures = width
	return nil
}

func (f *RandomForest) Predict(features []float64) (float64, error) {
	if len(f.trees) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(features) != f.nFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", f.nFeatures, len(features))
	}
	sum := 0.0
	for _, tree := range f.trees {
		value, err := tree.Predict(features)
		if err != nil {
			return 0, err
		}
		sum += value
	}
	return sum / float64(len(f.trees)), nil
}

func (f *RandomForest) PredictBatch(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		value, err := f.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = value
	}
	return out, nil
}

func (f *RandomForest) Size() int {
	return len(f.trees)
}

func (f *RandomForest) FeatureCount() int {
	return f.nFeatures
}

func bootstrap(n int, rnd *rand.Rand) []int {
	sample := make([]int, n)
	for i := range sample {
		sample[i] = rnd.Intn(n)
	}
	return sample
}
