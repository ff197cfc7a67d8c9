// Package cli содержит команды storyline: serve, migrate и sweep.
package cli

import (
	"fmt"
	"os"

	"storyline-server/internal/config"
	"storyline-server/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	envFile string

	cfg *config.Config
	log *zap.Logger
)

// RootCmd - корневая команда без подкоманд.
var RootCmd = &cobra.Command{
	Use:   "storyline",
	Short: "Interactive story generation server",
	Long: `storyline generates branching stories with a language model.
A game is created in the background while progress is streamed to the client,
then advanced one player choice at a time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && envFile != ".env" {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}
		log, err = logger.New(logger.Config{
			Level:      cfg.LogLevel,
			Encoding:   cfg.LogEncoding,
			OutputPath: cfg.LogOutput,
			Sampling:   cfg.LogSampling,
		})
		if err != nil {
			return err
		}
		cfg.LogFields(log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the environment is read")
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(migrateCmd)
	RootCmd.AddCommand(sweepCmd)
}
