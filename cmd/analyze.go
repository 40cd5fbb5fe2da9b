package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/keepnetlabs/mailtriage/internal/pipeline"
)

var (
	analyzeID      string
	analyzeToken   string
	analyzeBaseURL string
	analyzeFormat  string
	analyzeOffline bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a single reported email",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, analyzeOffline)
		if err != nil {
			return err
		}
		defer env.Close()

		baseURL := analyzeBaseURL
		if baseURL == "" {
			baseURL = cfg.Source.BaseURL
		}

		result, err := env.Pipeline.Run(ctx, pipeline.AnalysisRequest{
			EmailID:     analyzeID,
			AccessToken: analyzeToken,
			APIBaseURL:  baseURL,
		})
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("analysis complete",
			zap.String("run_id", result.RunID),
			zap.String("category", string(result.Verdict.Category)),
			zap.String("risk_level", string(result.Assessment.RiskLevel)),
		)

		switch analyzeFormat {
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close() //nolint:errcheck
			return enc.Encode(result)
		default:
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeID, "id", "", "reported email ID (required)")
	analyzeCmd.Flags().StringVar(&analyzeToken, "token", "", "bearer token for the source API")
	analyzeCmd.Flags().StringVar(&analyzeBaseURL, "base-url", "", "source API base URL (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format: json or yaml")
	analyzeCmd.Flags().BoolVar(&analyzeOffline, "offline", false, "run against the stub inference client, no external calls")
	_ = analyzeCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(analyzeCmd)
}
