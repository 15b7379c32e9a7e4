package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/aeroshield/stormrisk-cli/internal/airports"
	"github.com/aeroshield/stormrisk-cli/internal/model"
	"github.com/aeroshield/stormrisk-cli/internal/pipeline"
	"github.com/aeroshield/stormrisk-cli/internal/report"
	"github.com/aeroshield/stormrisk-cli/internal/store"
	"github.com/aeroshield/stormrisk-cli/internal/track"
	"github.com/aeroshield/stormrisk-cli/internal/zone"
	"github.com/aeroshield/stormrisk-cli/pkg/weatherlab"
)

// server carries the dependencies the HTTP handlers need.
type server struct {
	store     store.Store
	forecasts weatherlab.Client
	airports  []model.Airport
	params    model.AnalysisParams
	options   pipeline.Options
}

func newRouter(s *server, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/runs", s.handleListRuns)
		r.Route("/runs/{runID}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Get("/exposures", s.handleExposures)
			r.Get("/report", s.handleReport)
			r.Get("/zones", s.handleZones)
		})
		r.Get("/airports", s.handleAirports)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// runError maps store and report errors for a run read to a status code.
func runError(w http.ResponseWriter, runID string, err error) {
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		writeErr(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
	case errors.Is(err, report.ErrRunNotComplete):
		writeErr(w, http.StatusConflict, fmt.Sprintf("run %s is not complete", runID))
	default:
		zap.L().Error("store read", zap.String("run_id", runID), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Error("health: store ping", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analyzeRequest struct {
	Date   string `json:"date"`
	Region string `json:"region,omitempty"`
	Save   bool   `json:"save,omitempty"`
}

type analyzeResponse struct {
	RunID    string               `json:"run_id,omitempty"`
	Source   string               `json:"source"`
	InitTime time.Time            `json:"init_time"`
	Storms   []model.StormSummary `json:"storms"`
	Totals   model.RunTotals      `json:"totals"`
	Warnings []string             `json:"warnings,omitempty"`
}

// handleAnalyze fetches one WeatherLab cycle and runs the pipeline
// synchronously. A cycle takes seconds, so no job queue is involved.
func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("bad date %q, want YYYY-MM-DD", req.Date))
		return
	}

	aps := s.airports
	if req.Region != "" {
		aps = airports.ByRegion(aps, model.Region(req.Region))
		if len(aps) == 0 {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("no airports in region %q", req.Region))
			return
		}
	}

	ctx := r.Context()
	f, err := s.forecasts.FetchForecast(ctx, date)
	if err != nil {
		if errors.Is(err, weatherlab.ErrNotPublished) {
			writeErr(w, http.StatusNotFound, fmt.Sprintf("forecast for %s not published", req.Date))
			return
		}
		zap.L().Error("analyze: fetch forecast", zap.Error(err))
		writeErr(w, http.StatusBadGateway, "fetch forecast failed")
		return
	}

	samples, initByStorm := track.SamplesFromForecast(f)
	res, err := pipeline.Run(ctx, pipeline.Input{
		Source:          "weatherlab",
		InitTime:        f.InitTime,
		InitTimeByStorm: initByStorm,
		Samples:         samples,
		Airports:        aps,
		Params:          s.params,
	}, s.options)
	if err != nil {
		zap.L().Error("analyze: pipeline", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	resp := analyzeResponse{
		Source:   res.Source,
		InitTime: res.InitTime,
		Storms:   res.Storms,
		Totals:   res.Totals,
		Warnings: res.Warnings,
	}
	if req.Save {
		run, err := pipeline.SaveResult(ctx, s.store, res)
		if err != nil {
			zap.L().Error("analyze: save run", zap.Error(err))
			writeErr(w, http.StatusInternalServerError, "save failed")
			return
		}
		resp.RunID = run.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Limit: 20}
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		filter.Status = model.RunStatus(v)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("bad limit %q", v))
			return
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Sprintf("bad since %q, want YYYY-MM-DD", v))
			return
		}
		filter.Since = since
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		runError(w, runID, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleExposures(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := s.store.GetRun(r.Context(), runID); err != nil {
		runError(w, runID, err)
		return
	}
	records, err := s.store.GetExposures(r.Context(), runID)
	if err != nil {
		runError(w, runID, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	data, err := report.FromStore(r.Context(), s.store, runID)
	if err != nil {
		runError(w, runID, err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", "exposure_"+truncateID(runID)+".xlsx"))
		if err := report.XLSX(data, w); err != nil {
			zap.L().Error("render xlsx", zap.String("run_id", runID), zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if _, err := w.Write([]byte(report.Text(data))); err != nil {
		zap.L().Error("write report", zap.String("run_id", runID), zap.Error(err))
	}
}

// handleZones serves stored impact zones as GeoJSON. One storm renders a
// bare FeatureCollection; a whole run renders an object keyed by storm ID.
func (s *server) handleZones(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	ctx := r.Context()

	if _, err := s.store.GetRun(ctx, runID); err != nil {
		runError(w, runID, err)
		return
	}

	storm := r.URL.Query().Get("storm")
	sets, err := s.store.GetZones(ctx, runID, storm)
	if err != nil {
		runError(w, runID, err)
		return
	}

	if storm != "" {
		if len(sets) == 0 {
			writeErr(w, http.StatusNotFound, fmt.Sprintf("no zones for storm %s", storm))
			return
		}
		b, err := zone.GeoJSON(sets[0])
		if err != nil {
			runError(w, runID, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write(b) //nolint:errcheck
		return
	}

	out := make(map[string]json.RawMessage, len(sets))
	for _, set := range sets {
		b, err := zone.GeoJSON(set)
		if err != nil {
			runError(w, runID, err)
			return
		}
		out[set.StormID] = b
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleAirports(w http.ResponseWriter, r *http.Request) {
	table := s.airports
	if region := r.URL.Query().Get("region"); region != "" {
		table = airports.ByRegion(table, model.Region(region))
	}
	writeJSON(w, http.StatusOK, table)
}
