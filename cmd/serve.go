package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keepnetlabs/mailtriage/internal/pipeline"
	"github.com/keepnetlabs/mailtriage/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// analysisResponse is the ingress response envelope. Failures never carry a
// raw stack trace, only a message.
type analysisResponse struct {
	Success bool              `json:"success"`
	RunID   string            `json:"runId,omitempty"`
	Report  any               `json:"report,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// newRouter builds the ingress router.
func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/analyses", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ID          string `json:"id"`
			AccessToken string `json:"accessToken"`
			APIBaseURL  string `json:"apiBaseUrl"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, analysisResponse{
				Success: false,
				Error:   "invalid request body",
			})
			return
		}

		if fields := validateAnalysisRequest(body.ID, body.AccessToken, body.APIBaseURL); len(fields) > 0 {
			writeJSON(w, http.StatusBadRequest, analysisResponse{
				Success: false,
				Error:   "validation failed",
				Fields:  fields,
			})
			return
		}

		baseURL := body.APIBaseURL
		if baseURL == "" {
			baseURL = cfg.Source.BaseURL
		}

		result, err := env.Pipeline.Run(req.Context(), pipeline.AnalysisRequest{
			EmailID:     body.ID,
			AccessToken: body.AccessToken,
			APIBaseURL:  baseURL,
		})
		if err != nil {
			runID := ""
			if result != nil {
				runID = result.RunID
			}
			zap.L().Error("analysis failed", zap.String("email_id", body.ID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, analysisResponse{
				Success: false,
				RunID:   runID,
				Error:   "analysis failed: " + eris.Cause(err).Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, analysisResponse{
			Success: true,
			RunID:   result.RunID,
			Report:  result.Report,
		})
	})

	r.Get("/v1/reports/{runID}", func(w http.ResponseWriter, req *http.Request) {
		runID := chi.URLParam(req, "runID")

		report, err := env.Store.GetReport(req.Context(), runID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, analysisResponse{
					Success: false,
					RunID:   runID,
					Error:   "report not found",
				})
				return
			}
			zap.L().Error("get report failed", zap.String("run_id", runID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, analysisResponse{
				Success: false,
				RunID:   runID,
				Error:   "failed to load report",
			})
			return
		}

		writeJSON(w, http.StatusOK, analysisResponse{
			Success: true,
			RunID:   runID,
			Report:  report,
		})
	})

	return r
}

// validateAnalysisRequest checks the ingress shape and returns field-level
// error detail.
func validateAnalysisRequest(id, token, baseURL string) map[string]string {
	fields := make(map[string]string)
	if len(id) < 1 || len(id) > 128 {
		fields["id"] = "must be 1 to 128 characters"
	}
	if len(token) < 1 || len(token) > 4096 {
		fields["accessToken"] = "must be 1 to 4096 characters"
	}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			fields["apiBaseUrl"] = "must be a valid absolute URL"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// requestLogger logs each request with structured fields.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
