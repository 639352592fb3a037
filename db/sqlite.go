package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store keeps an audit trail of training runs. It never holds model or
// session state.
type Store struct {
	database *sql.DB
}

// Open opens (or creates) the SQLite database at path. ":memory:" is
// accepted for tests.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        dataset TEXT NOT NULL,
        rows INTEGER NOT NULL,
        columns INTEGER NOT NULL,
        train_rows INTEGER NOT NULL,
        eval_rows INTEGER NOT NULL,
        mae REAL NOT NULL,
        confidence REAL NOT NULL,
        seed INTEGER NOT NULL,
        trees INTEGER NOT NULL,
        quality_issues INTEGER DEFAULT 0,
        trained_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_training_log_trained_at ON training_log(trained_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{database: database}, nil
}

func (s *Store) Close() error {
	return s.database.Close()
}

type TrainingLog struct {
	ID            int64     `json:"id"`
	Dataset       string    `json:"dataset"`
	Rows          int       `json:"rows"`
	Columns       int       `json:"columns"`
	TrainRows     int       `json:"train_rows"`
	EvalRows      int       `json:"eval_rows"`
	MAE           float64   `json:"mean_absolute_error"`
	Confidence    float64   `json:"confidence_percent"`
	Seed          int64     `json:"seed"`
	Trees         int       `json:"trees"`
	QualityIssues int       `json:"quality_issues"`
	TrainedAt     time.Time `json:"trained_at"`
}

// RecordTraining appends one run and returns its id.
func (s *Store) RecordTraining(ctx context.Context, entry TrainingLog) (int64, error) {
	if entry.TrainedAt.IsZero() {
		entry.TrainedAt = time.Now().UTC()
	}
	result, err := s.database.ExecContext(ctx, `
        INSERT INTO training_log (
            dataset, rows, columns, train_rows, eval_rows, mae, confidence,
            seed, trees, quality_issues, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Dataset, entry.Rows, entry.Columns, entry.TrainRows, entry.EvalRows,
		entry.MAE, entry.Confidence, entry.Seed, entry.Trees, entry.QualityIssues,
		entry.TrainedAt.UTC())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// LoadTrainingLog returns up to limit runs, newest first. limit <= 0
// returns everything.
func (s *Store) LoadTrainingLog(ctx context.Context, limit int) ([]TrainingLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.database.QueryContext(ctx, `
        SELECT id, dataset, rows, columns, train_rows, eval_rows, mae, confidence,
               seed, trees, quality_issues, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ID, &log.Dataset, &log.Rows, &log.Columns, &log.TrainRows, &log.EvalRows,
			&log.MAE, &log.Confidence, &log.Seed, &log.Trees, &log.QualityIssues, &log.TrainedAt); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
