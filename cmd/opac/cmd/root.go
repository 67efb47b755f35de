package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eigenbahn/dynix/pkg/config"
	apperrors "github.com/eigenbahn/dynix/pkg/errors"
	"github.com/eigenbahn/dynix/pkg/logger"
)

var (
	configPath string
	cfg        *config.Config
	closeLog   func() error
)

var rootCmd = &cobra.Command{
	Use:           "opac",
	Short:         "Dynix-style library catalog terminal",
	Long:          "Search library catalogs the way patrons did on the old Dynix terminals: per-term counts, a title listing and one record at a time.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
		}
		cfg = loaded
		return setupLogging(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closeLog != nil {
			return closeLog()
		}
		return nil
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(invalidateCmd)
	rootCmd.AddCommand(statsCmd)
}

// setupLogging keeps log lines off the screen the catalog draws on: the
// full-screen terminal logs to a file and everything else to stderr unless a
// file is configured.
func setupLogging(cmd *cobra.Command) error {
	file := cfg.Logging.File
	if file == "" && cmd == runCmd {
		file = "opac.log"
	}
	if file == "" {
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	}
	c, err := logger.SetupFile(file, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	closeLog = c
	return nil
}
