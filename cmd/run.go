// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/engine"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

// newRunCmd creates the `run` command: one automation task per target
// URL, fanned out over bounded concurrent browser sessions.
func newRunCmd() *cobra.Command {
	var (
		goal     string
		targets  []string
		formData map[string]string
		steps    int
		headless bool
		debug    bool
		output   string
	)

	runCmd := &cobra.Command{
		Use:   "run <platform>",
		Short: "Runs automation tasks against a platform",
		Long: `Run authenticates against the named platform and drives the
vision-model loop until each task completes or fails. Targets are the
form or invitation URLs to process; with no target, the model starts
from the post-login page.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			platformName := args[0]

			if steps > 0 {
				cfg.SetEngineStepBudget(steps)
			}
			if cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(headless)
			}
			if debug {
				cfg.SetBrowserDebug(true)
			}
			if output != "" {
				cfg.SetReportOutputDir(output)
			}

			if len(targets) == 0 {
				targets = []string{""}
			}

			jobs := make([]engine.Job, 0, len(targets))
			var components *taskComponents
			for _, target := range targets {
				comps, err := buildComponents(ctx, cfg, platformName, logger)
				if err != nil {
					return err
				}
				components = comps

				task := &schemas.TaskContext{
					TaskID:     uuid.New().String(),
					Platform:   platformName,
					Goal:       goal,
					TargetURL:  target,
					FormData:   formData,
					StepBudget: cfg.Engine().StepBudget,
				}
				jobs = append(jobs, engine.Job{
					Engine: comps.engine,
					NewSession: func(sctx context.Context) (schemas.BrowserSession, error) {
						return comps.newSession(sctx, cfg, logger)
					},
					Task:  task,
					Creds: comps.creds,
				})
			}

			logger.Info("Starting run.",
				zap.String("platform", platformName),
				zap.Int("tasks", len(jobs)),
				zap.Int("concurrency", cfg.Engine().Concurrency))

			results := engine.RunAll(ctx, cfg.Engine().Concurrency, logger, jobs)

			if err := components.writer.WriteAll(ctx, results); err != nil {
				return err
			}

			var failed int
			for _, r := range results {
				if r.Status == schemas.StatusFailed {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tasks failed", failed, len(results))
			}
			return nil
		},
	}

	runCmd.Flags().StringVarP(&goal, "goal", "g", "Complete and submit the form.", "instruction describing what to accomplish")
	runCmd.Flags().StringArrayVarP(&targets, "target", "t", nil, "target URL (repeatable; one task per target)")
	runCmd.Flags().StringToStringVarP(&formData, "form", "f", nil, "form field values as key=value (repeatable)")
	runCmd.Flags().IntVar(&steps, "steps", 0, "override the step budget per task")
	runCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	runCmd.Flags().BoolVar(&debug, "debug", false, "save sanitized debug screenshots")
	runCmd.Flags().StringVarP(&output, "output", "o", "", "report output directory")
	return runCmd
}
