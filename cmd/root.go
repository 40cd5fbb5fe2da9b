package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keepnetlabs/mailtriage/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mailtriage",
	Short: "Email incident-response analysis pipeline",
	Long:  "Fetches a reported email, runs concurrent header/behavioral/intent analysis, triages it into a severity-ordered category, scores the risk, and writes a SOC-ready incident report.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
