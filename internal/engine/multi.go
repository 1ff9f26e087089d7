// File: internal/engine/multi.go
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// Job is one independent task for RunAll. Each job owns its engine and
// its session; nothing is shared across jobs, so credentials and
// cookies never cross platforms.
type Job struct {
	Engine     *Engine
	NewSession func(ctx context.Context) (schemas.BrowserSession, error)
	Task       *schemas.TaskContext
	Creds      schemas.Credentials
}

// RunAll executes jobs with at most concurrency browser sessions live
// at once. The result slice is index-aligned with jobs and every entry
// is non-nil; a job whose session could not launch gets a failed
// result instead of panicking the group.
func RunAll(ctx context.Context, concurrency int, logger *zap.Logger, jobs []Job) []*schemas.TaskResult {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]*schemas.TaskResult, len(jobs))
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			sess, err := job.NewSession(groupCtx)
			if err != nil {
				logger.Error("Session launch failed.",
					zap.String("task_id", job.Task.TaskID),
					zap.Error(err))
				now := time.Now().UTC()
				results[i] = &schemas.TaskResult{
					TaskID:     job.Task.TaskID,
					Platform:   job.Task.Platform,
					Status:     schemas.StatusFailed,
					Reason:     schemas.ReasonOf(err),
					Detail:     job.Engine.sanitizer.Mask(err.Error()),
					StartedAt:  now,
					FinishedAt: now,
				}
				return nil
			}
			defer sess.Close()

			results[i] = job.Engine.Run(groupCtx, sess, job.Task, job.Creds)
			return nil
		})
	}

	// Workers never return errors, so Wait only synchronizes.
	_ = g.Wait()
	return results
}
