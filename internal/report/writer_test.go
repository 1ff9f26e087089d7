// File: internal/report/writer_test.go
package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

func sampleResult(id string) *schemas.TaskResult {
	now := time.Now().UTC()
	return &schemas.TaskResult{
		TaskID:       id,
		Platform:     "glg",
		Status:       schemas.StatusCompleted,
		ProviderUsed: "gemini",
		StepsUsed:    4,
		StartedAt:    now.Add(-time.Minute),
		FinishedAt:   now,
	}
}

func TestWriteCreatesFilePerTask(t *testing.T) {
	dir := t.TempDir()
	w, err := New(config.ReportConfig{OutputDir: dir, Pretty: true}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), sampleResult("task-abc")))

	data, err := os.ReadFile(filepath.Join(dir, "task-abc.json"))
	require.NoError(t, err)

	var decoded schemas.TaskResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "task-abc", decoded.TaskID)
	assert.Equal(t, schemas.StatusCompleted, decoded.Status)
	assert.Equal(t, 4, decoded.StepsUsed)
}

func TestNewCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	_, err := New(config.ReportConfig{OutputDir: dir}, zap.NewNop())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewRejectsEmptyDir(t *testing.T) {
	_, err := New(config.ReportConfig{}, zap.NewNop())
	require.Error(t, err)
}

func TestWriteRejectsAnonymousResult(t *testing.T) {
	w, err := New(config.ReportConfig{OutputDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)

	assert.Error(t, w.Write(context.Background(), &schemas.TaskResult{}))
	assert.Error(t, w.Write(context.Background(), nil))
}

func TestWriteAllContinuesPastFailures(t *testing.T) {
	w, err := New(config.ReportConfig{OutputDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)

	results := []*schemas.TaskResult{
		sampleResult("task-1"),
		{}, // no id, fails
		sampleResult("task-2"),
	}
	err = w.WriteAll(context.Background(), results)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(w.cfg.OutputDir, "task-2.json"))
	assert.NoError(t, statErr)
}

func TestWriteHonorsCancellation(t *testing.T) {
	w, err := New(config.ReportConfig{OutputDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, w.Write(ctx, sampleResult("task-x")))
}
