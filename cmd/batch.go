// File: cmd/batch.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/engine"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

// newBatchCmd creates the `batch` command: one authenticated session
// sweeping every pending invitation on the platform dashboard.
func newBatchCmd() *cobra.Command {
	var (
		goal     string
		formData map[string]string
		maxInv   int
		headless bool
		debug    bool
		output   string
	)

	batchCmd := &cobra.Command{
		Use:   "batch <platform>",
		Short: "Processes all pending dashboard invitations in one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			platformName := args[0]

			if cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(headless)
			}
			if debug {
				cfg.SetBrowserDebug(true)
			}
			if output != "" {
				cfg.SetReportOutputDir(output)
			}

			comps, err := buildComponents(ctx, cfg, platformName, logger)
			if err != nil {
				return err
			}
			if comps.profile.InvitationSelector == "" {
				return fmt.Errorf("platform %q has no invitation selector; batch mode needs one", platformName)
			}

			sess, err := comps.newSession(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			results := comps.engine.RunBatch(ctx, sess, comps.creds, engine.BatchOptions{
				Goal:           goal,
				FormData:       formData,
				MaxInvitations: maxInv,
			})

			if err := comps.writer.WriteAll(ctx, results); err != nil {
				return err
			}

			var completed int
			for _, r := range results {
				if r.Status == schemas.StatusCompleted {
					completed++
				}
			}
			logger.Info("Batch finished.",
				zap.String("platform", platformName),
				zap.Int("completed", completed),
				zap.Int("attempted", len(results)))

			if len(results) > 0 && completed == 0 {
				return fmt.Errorf("all %d invitations failed", len(results))
			}
			return nil
		},
	}

	batchCmd.Flags().StringVarP(&goal, "goal", "g", "Open the invitation and complete the requested form.", "instruction applied to each invitation")
	batchCmd.Flags().StringToStringVarP(&formData, "form", "f", nil, "form field values as key=value, shared by every invitation")
	batchCmd.Flags().IntVar(&maxInv, "max", 0, "cap on invitations to process (0 = all)")
	batchCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	batchCmd.Flags().BoolVar(&debug, "debug", false, "save sanitized debug screenshots")
	batchCmd.Flags().StringVarP(&output, "output", "o", "", "report output directory")
	return batchCmd
}
