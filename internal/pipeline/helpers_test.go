package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/keepnetlabs/mailtriage/internal/resilience"
	"github.com/keepnetlabs/mailtriage/pkg/anthropic"
)

// testStageConfig returns stage settings with a fast retry policy.
func testStageConfig() Config {
	return Config{
		Model:     "test-model",
		MaxTokens: 1024,
		Retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
			Multiplier:     2.0,
		},
		AnalysisTimeout: 10,
	}
}

// scriptedClient replays a fixed sequence of responses. The last entry
// repeats once the script is exhausted.
type scriptedClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	requests  []anthropic.MessageRequest
}

func (c *scriptedClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.calls
	c.calls++
	c.requests = append(c.requests, req)

	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return &anthropic.MessageResponse{
		ID:         "scripted-msg",
		Model:      req.Model,
		Content:    []anthropic.ContentBlock{{Type: "text", Text: c.responses[i]}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}, nil
}

// routedClient answers per stage, falling back to the offline stub for any
// stage without an override. Orchestrator scenario tests use it to steer a
// single stage while the rest of the pipeline behaves.
type routedClient struct {
	overrides map[string]string
	stub      StubInferenceClient
}

func (c *routedClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	var system string
	for _, block := range req.System {
		system += block.Text
	}
	if text, ok := c.overrides[stageForSystem(system)]; ok {
		return &anthropic.MessageResponse{
			ID:         "routed-msg",
			Model:      req.Model,
			Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
			StopReason: "end_turn",
			Usage:      anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
		}, nil
	}
	return c.stub.CreateMessage(ctx, req)
}
