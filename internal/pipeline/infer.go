package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/keepnetlabs/mailtriage/internal/resilience"
	"github.com/keepnetlabs/mailtriage/pkg/anthropic"
)

// Config carries the inference and retry settings shared by all stages.
type Config struct {
	Model           string
	MaxTokens       int64
	Retry           resilience.RetryConfig
	AnalysisTimeout int // seconds; bound on the analysis fan-out join
}

// SchemaError marks an inference response that failed schema validation.
// It is retryable like a transient failure: the next attempt may produce a
// conforming object.
type SchemaError struct {
	Stage string
	Err   error
}

func (e *SchemaError) Error() string {
	return "pipeline: " + e.Stage + " returned non-conforming output: " + e.Err.Error()
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsSchemaError reports whether the error chain contains a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// stageRetryConfig extends the base retry policy so schema violations are
// retried alongside transient errors, within the same attempt budget.
func stageRetryConfig(cfg Config, stage string) resilience.RetryConfig {
	rc := cfg.Retry
	rc.ShouldRetry = func(err error) bool {
		return resilience.IsTransient(err) || IsSchemaError(err)
	}
	rc.OnRetry = resilience.RetryLogger(stage, "inference")
	return rc
}

// inferObject performs one retry-wrapped inference call, extracts the JSON
// payload from the response, decodes it into out, and validates it. The
// decode target and validator together form the stage's schema: any mismatch
// is a SchemaError and counts as a stage failure.
func inferObject[T any](
	ctx context.Context,
	ai anthropic.Client,
	cfg Config,
	stage, system, user string,
	validate func(*T) error,
) (*T, anthropic.TokenUsage, error) {
	var usage anthropic.TokenUsage

	out, err := resilience.DoVal(ctx, stageRetryConfig(cfg, stage), func(ctx context.Context) (*T, error) {
		resp, err := ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			System:    anthropic.BuildCachedSystemBlocks(system),
			Messages: []anthropic.Message{
				{Role: "user", Content: user},
			},
		})
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: %s inference", stage)
		}
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens
		usage.CacheCreationInputTokens += resp.Usage.CacheCreationInputTokens
		usage.CacheReadInputTokens += resp.Usage.CacheReadInputTokens

		text := cleanJSON(extractText(resp))
		var decoded T
		if err := json.Unmarshal([]byte(text), &decoded); err != nil {
			return nil, &SchemaError{Stage: stage, Err: err}
		}
		if validate != nil {
			if err := validate(&decoded); err != nil {
				return nil, &SchemaError{Stage: stage, Err: err}
			}
		}
		return &decoded, nil
	})
	if err != nil {
		return nil, usage, err
	}
	usage.LogUsage(cfg.Model, stage)
	return out, usage, nil
}

// extractText concatenates the text blocks of a response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// clamp01 bounds a confidence to [0,1].
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
