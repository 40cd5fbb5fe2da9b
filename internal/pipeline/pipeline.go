package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/keepnetlabs/mailtriage/internal/config"
	"github.com/keepnetlabs/mailtriage/internal/fetcher"
	"github.com/keepnetlabs/mailtriage/internal/model"
	"github.com/keepnetlabs/mailtriage/internal/resilience"
	"github.com/keepnetlabs/mailtriage/internal/store"
	"github.com/keepnetlabs/mailtriage/pkg/anthropic"
)

// AnalysisRequest identifies one notified email to analyze.
type AnalysisRequest struct {
	EmailID     string
	AccessToken string
	APIBaseURL  string
}

// Pipeline orchestrates a full analysis run: fetch, the three-way analysis
// fan-out, triage, feature extraction, risk assessment, and reporting.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	ai      anthropic.Client
	fetcher *fetcher.Client
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, ai anthropic.Client, fc *fetcher.Client) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		ai:      ai,
		fetcher: fc,
	}
}

// stageConfig builds the per-stage inference settings from application
// config.
func (p *Pipeline) stageConfig() Config {
	return Config{
		Model:     p.cfg.Anthropic.Model,
		MaxTokens: p.cfg.Anthropic.MaxTokens,
		Retry: resilience.FromConfig(
			p.cfg.Pipeline.RetryMaxAttempts,
			p.cfg.Pipeline.RetryInitialDelayMs,
			p.cfg.Pipeline.RetryMaxDelayMs,
		),
		AnalysisTimeout: p.cfg.Pipeline.AnalysisTimeoutSecs,
	}
}

// Run executes the full pipeline for one notified email. On stage failure
// the run is marked failed and the result still carries the run ID and the
// partial stage history; only the report is withheld.
func (p *Pipeline) Run(ctx context.Context, req AnalysisRequest) (*model.AnalysisResult, error) {
	log := zap.L().With(zap.String("email_id", req.EmailID))
	log.Info("pipeline: starting analysis")

	run, err := p.store.CreateRun(ctx, req.EmailID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	result := &model.AnalysisResult{
		RunID:   run.ID,
		EmailID: req.EmailID,
	}
	cfg := p.stageConfig()
	var totalUsage model.TokenUsage

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status, ""); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	// Stage tracking helper with mutex for the concurrent fan-out.
	var stagesMu sync.Mutex
	trackStage := func(name string, fn func() (*model.StageResult, error)) error {
		start := time.Now()
		stageResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if stageResult == nil {
			stageResult = &model.StageResult{}
		}
		stageResult.Name = name
		stageResult.Duration = duration

		if fnErr != nil {
			stageResult.Status = model.StageStatusFailed
			stageResult.Error = fnErr.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			if stageResult.Status == "" {
				stageResult.Status = model.StageStatusComplete
			}
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.String("status", string(stageResult.Status)),
				zap.Int64("duration_ms", duration),
			)
		}

		stagesMu.Lock()
		result.Stages = append(result.Stages, *stageResult)
		totalUsage.Add(stageResult.TokenUsage)
		stagesMu.Unlock()

		if saveErr := p.store.SaveStageResult(ctx, run.ID, *stageResult); saveErr != nil {
			log.Warn("pipeline: failed to save stage result", zap.String("stage", name), zap.Error(saveErr))
		}
		return fnErr
	}

	fail := func(stage string, err error) (*model.AnalysisResult, error) {
		result.TotalTokens = totalUsage.InputTokens + totalUsage.OutputTokens
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed, err.Error()); statusErr != nil {
			log.Warn("pipeline: failed to mark run failed", zap.Error(statusErr))
		}
		return result, eris.Wrapf(err, "pipeline: %s stage", stage)
	}

	// Fetch. The fetcher degrades instead of failing, so an error here means
	// cancellation only.
	setStatus(model.RunStatusFetching)
	var email model.EmailRecord

	err = trackStage("fetch", func() (*model.StageResult, error) {
		record, fetchErr := p.fetcher.Fetch(ctx, req.EmailID, req.AccessToken, req.APIBaseURL)
		if fetchErr != nil {
			return nil, fetchErr
		}
		email = *record
		sr := &model.StageResult{}
		if _, degraded := record.HeaderValue(fetcher.FetchFailedHeader); degraded {
			sr.Status = model.StageStatusDegraded
			sr.Metadata = map[string]any{"degraded": true}
		}
		return sr, nil
	})
	if err != nil {
		return fail("fetch", err)
	}

	// Analysis fan-out. The three stages are independent, each writes to its
	// own slot, and any failure fails the join: triage without full signal is
	// unsafe. The join is bounded by the analysis timeout.
	setStatus(model.RunStatusAnalyzing)

	analysisCtx := ctx
	if cfg.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		analysisCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.AnalysisTimeout)*time.Second)
		defer cancel()
	}

	var (
		header     *model.HeaderFinding
		behavioral *model.BehavioralFinding
		intent     *model.IntentFinding
	)

	g, gCtx := errgroup.WithContext(analysisCtx)
	g.Go(func() error {
		return trackStage("header", func() (*model.StageResult, error) {
			finding, usage, stageErr := AnalyzeHeader(gCtx, email, p.ai, cfg)
			if stageErr != nil {
				return stageUsage(usage), stageErr
			}
			header = finding
			return stageUsage(usage), nil
		})
	})
	g.Go(func() error {
		return trackStage("behavioral", func() (*model.StageResult, error) {
			finding, usage, stageErr := AnalyzeBehavioral(gCtx, email, p.ai, cfg)
			if stageErr != nil {
				return stageUsage(usage), stageErr
			}
			behavioral = finding
			return stageUsage(usage), nil
		})
	})
	g.Go(func() error {
		return trackStage("intent", func() (*model.StageResult, error) {
			finding, usage, stageErr := AnalyzeIntent(gCtx, email, p.ai, cfg)
			if stageErr != nil {
				return stageUsage(usage), stageErr
			}
			intent = finding
			return stageUsage(usage), nil
		})
	})
	if err := g.Wait(); err != nil {
		return fail("analysis", err)
	}

	// Triage.
	setStatus(model.RunStatusTriaging)
	var verdict *model.TriageVerdict

	err = trackStage("triage", func() (*model.StageResult, error) {
		v, usage, stageErr := Triage(ctx, email, header, behavioral, intent, p.ai, cfg)
		if stageErr != nil {
			return stageUsage(usage), stageErr
		}
		verdict = v
		sr := stageUsage(usage)
		sr.Metadata = map[string]any{
			"category":   string(v.Category),
			"confidence": v.Confidence,
		}
		return sr, nil
	})
	if err != nil {
		return fail("triage", err)
	}
	result.Verdict = verdict

	// Feature extraction. Pure merge, never suspends.
	var features model.FeatureSet
	_ = trackStage("features", func() (*model.StageResult, error) {
		features = ExtractFeatures(email, verdict, header, behavioral, intent)
		return &model.StageResult{
			Metadata: map[string]any{
				"engine_indicators_present": features.EngineIndicatorsPresent,
				"authentication_passed":     features.AuthenticationPassed,
			},
		}, nil
	})

	// Risk assessment.
	setStatus(model.RunStatusAssessing)
	var assessment *model.RiskAssessment

	err = trackStage("risk", func() (*model.StageResult, error) {
		a, usage, stageErr := AssessRisk(ctx, features, p.ai, cfg)
		if stageErr != nil {
			return stageUsage(usage), stageErr
		}
		assessment = a
		sr := stageUsage(usage)
		sr.Metadata = map[string]any{
			"risk_level": string(a.RiskLevel),
			"confidence": a.Confidence,
		}
		return sr, nil
	})
	if err != nil {
		return fail("risk", err)
	}
	result.Assessment = assessment

	// Report.
	setStatus(model.RunStatusReporting)
	var report *model.IncidentReport

	err = trackStage("report", func() (*model.StageResult, error) {
		r, usage, stageErr := BuildReport(ctx, assessment, p.ai, cfg)
		if stageErr != nil {
			return stageUsage(usage), stageErr
		}
		report = r
		return stageUsage(usage), nil
	})
	if err != nil {
		return fail("report", err)
	}
	result.Report = report
	result.TotalTokens = totalUsage.InputTokens + totalUsage.OutputTokens

	if saveErr := p.store.SaveReport(ctx, run.ID, req.EmailID, report); saveErr != nil {
		log.Warn("pipeline: failed to save report", zap.Error(saveErr))
	}
	setStatus(model.RunStatusComplete)

	log.Info("pipeline: analysis complete",
		zap.String("category", string(verdict.Category)),
		zap.String("risk_level", string(assessment.RiskLevel)),
		zap.Int("tokens", result.TotalTokens),
	)

	return result, nil
}

// stageUsage converts inference usage into a stage result shell. Cache reads
// and writes count as input tokens for the run total.
func stageUsage(usage anthropic.TokenUsage) *model.StageResult {
	return &model.StageResult{
		TokenUsage: model.TokenUsage{
			InputTokens:  int(usage.InputTokens + usage.CacheCreationInputTokens + usage.CacheReadInputTokens),
			OutputTokens: int(usage.OutputTokens),
		},
	}
}
