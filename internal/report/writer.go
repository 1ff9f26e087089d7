// File: internal/report/writer.go

// Package report persists terminal task results as JSON files, one
// file per task.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Writer serializes TaskResults into the configured output directory.
// Results arriving here have already been sanitized by the engine.
type Writer struct {
	cfg    config.ReportConfig
	logger *zap.Logger
}

var _ schemas.Reporter = (*Writer)(nil)

// New creates the output directory if needed and returns a Writer.
func New(cfg config.ReportConfig, logger *zap.Logger) (*Writer, error) {
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("report output directory is not set")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", cfg.OutputDir, err)
	}
	return &Writer{cfg: cfg, logger: logger.Named("report")}, nil
}

// Write persists one result as <output_dir>/<task_id>.json.
func (w *Writer) Write(ctx context.Context, result *schemas.TaskResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result == nil || result.TaskID == "" {
		return fmt.Errorf("result has no task id")
	}

	var (
		data []byte
		err  error
	)
	if w.cfg.Pretty {
		data, err = json.MarshalIndent(result, "", "  ")
	} else {
		data, err = json.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("failed to serialize result %s: %w", result.TaskID, err)
	}

	path := filepath.Join(w.cfg.OutputDir, result.TaskID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}

	w.logger.Info("Task report written.",
		zap.String("task_id", result.TaskID),
		zap.String("status", string(result.Status)),
		zap.String("path", path))
	return nil
}

// WriteAll persists a batch of results, continuing past individual
// failures and returning the first error encountered.
func (w *Writer) WriteAll(ctx context.Context, results []*schemas.TaskResult) error {
	var firstErr error
	for _, result := range results {
		if err := w.Write(ctx, result); err != nil {
			w.logger.Error("Report not written.", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
