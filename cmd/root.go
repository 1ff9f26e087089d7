// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/sanitize"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "formpilot",
	Short:   "Formpilot automates form-based web flows with vision-model computer use.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := initializeViper()
		if err != nil {
			return err
		}

		cfg, err = config.NewConfigFromViper(v)
		if err != nil {
			// A fallback logger so the error itself is visible.
			observability.InitializeLogger(config.LoggerConfig{
				Level: "info", Format: "console", ServiceName: "formpilot",
			}, nil)
			return fmt.Errorf("failed to load config: %w", err)
		}

		// The sanitizer is wired into the logger core itself, so a
		// credential value can never reach a sink even if some call
		// site logs it by mistake.
		observability.InitializeLogger(cfg.Logger(), newSanitizer(cfg))
		observability.GetLogger().Info("Starting formpilot.", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command under a signal-aware context so an
// operator interrupt cancels the task at the next loop iteration.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command failed.", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./config.yaml or ~/.formpilot/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newBatchCmd())
}

// initializeViper sets defaults, reads the config file, and binds the
// FORMPILOT_* environment.
func initializeViper() (*viper.Viper, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home + "/.formpilot")
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FORMPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment carry the run.
	}
	return v, nil
}

// newSanitizer collects every configured credential value so the
// logging core and the engine mask them all, regardless of which
// platform a given task runs against.
func newSanitizer(cfg *config.Config) *sanitize.Sanitizer {
	mask := cfg.Sanitizer().MaskToken
	if mask == "" {
		mask = sanitize.DefaultMask
	}
	var secrets []string
	for _, p := range cfg.Platforms() {
		if p.Password != "" {
			secrets = append(secrets, p.Password)
		}
		if p.Username != "" {
			secrets = append(secrets, p.Username)
		}
	}
	return sanitize.New(mask, secrets...)
}
