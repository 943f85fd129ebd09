package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lox/marinedash/internal/models"
	"github.com/lox/marinedash/internal/narrative"
	"github.com/lox/marinedash/internal/store"
)

// MarineResponse is a marine record with its soft quality flags.
type MarineResponse struct {
	*models.MarineRecord
	QualityFlags []string `json:"qualityFlags,omitempty"`
}

// HistoryResponse is the detail view of a single metric.
type HistoryResponse struct {
	Region    models.Region     `json:"region"`
	FetchedAt time.Time         `json:"fetchedAt"`
	Info      models.MetricInfo `json:"info"`
	models.MetricSeries
}

type HealthStatus struct {
	Status           string                     `json:"status"`
	MigrationVersion int                        `json:"migrationVersion"`
	NarrativeEnabled bool                       `json:"narrativeEnabled"`
	FetchHealth      []store.FetchHealthSummary `json:"fetchHealth"`
	RecentErrors     []FetchErrorView           `json:"recentErrors,omitempty"`
	Errors           []string                   `json:"errors,omitempty"`
}

type FetchErrorView struct {
	Region    string    `json:"region"`
	Trigger   string    `json:"trigger"`
	StartedAt time.Time `json:"startedAt"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source,omitempty"`
	Message   string    `json:"message"`
}

// regionParam parses the region query parameter, writing a 400 on failure.
func regionParam(w http.ResponseWriter, r *http.Request) (models.Region, bool) {
	region, err := models.ParseRegion(r.URL.Query().Get("region"))
	if err != nil {
		writeFetchError(w, err)
		return "", false
	}
	return region, true
}

func metricParam(w http.ResponseWriter, r *http.Request) (models.Metric, bool) {
	metric, err := models.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "unknown_metric"})
		return "", false
	}
	return metric, true
}

func (s *Server) handleAPIRegions(w http.ResponseWriter, r *http.Request) {
	regions := make([]models.RegionConfig, 0, len(models.Regions()))
	for _, region := range models.Regions() {
		cfg, _ := region.Config()
		regions = append(regions, cfg)
	}
	writeJSON(w, http.StatusOK, regions)
}

func (s *Server) handleAPIMarine(w http.ResponseWriter, r *http.Request) {
	region, ok := regionParam(w, r)
	if !ok {
		return
	}

	rec, flags, err := s.recorder.Fetch(r.Context(), region, "api")
	if err != nil {
		writeFetchError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, MarineResponse{MarineRecord: rec, QualityFlags: flags})
}

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	region, ok := regionParam(w, r)
	if !ok {
		return
	}
	metric, ok := metricParam(w, r)
	if !ok {
		return
	}

	rec, _, err := s.recorder.Fetch(r.Context(), region, "api")
	if err != nil {
		writeFetchError(w, err)
		return
	}

	series, _ := rec.Series(metric)
	writeJSON(w, http.StatusOK, HistoryResponse{
		Region:       region,
		FetchedAt:    rec.FetchedAt,
		Info:         metric.Info(),
		MetricSeries: series,
	})
}

func (s *Server) handleAPIAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.narrator == nil {
		writeNarrativeError(w, http.StatusServiceUnavailable, narrative.ErrDisabled)
		return
	}

	region, ok := regionParam(w, r)
	if !ok {
		return
	}

	rec, _, err := s.recorder.Fetch(r.Context(), region, "api")
	if err != nil {
		writeFetchError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	body, err := s.narrator.Generate(ctx, rec)
	if err != nil {
		s.logger.Error().Err(err).Str("region", string(region)).Msg("analysis generation failed")
		writeNarrativeError(w, http.StatusBadGateway, err)
		return
	}

	snapshot, _ := json.Marshal(rec.Current())
	analysis := store.Analysis{
		ID:        uuid.NewString(),
		Region:    string(region),
		CreatedAt: s.clock.Now().UTC(),
		Model:     s.narrator.Model(),
		Body:      body,
		Snapshot:  string(snapshot),
	}
	if err := s.store.InsertAnalysis(analysis); err != nil {
		s.logger.Warn().Err(err).Str("region", string(region)).Msg("failed to store analysis")
	}

	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleAPIAnalyses(w http.ResponseWriter, r *http.Request) {
	var region string
	if r.URL.Query().Get("region") != "" {
		parsed, ok := regionParam(w, r)
		if !ok {
			return
		}
		region = string(parsed)
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	analyses, err := s.store.ListAnalyses(region, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if analyses == nil {
		analyses = []store.Analysis{}
	}
	writeJSON(w, http.StatusOK, analyses)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:           "ok",
		NarrativeEnabled: s.narrator != nil,
	}

	if err := s.store.Ping(r.Context()); err != nil {
		health.Errors = append(health.Errors, "database: "+err.Error())
	}

	version, err := s.store.MigrationVersion()
	if err != nil {
		health.Errors = append(health.Errors, "migrations: "+err.Error())
	}
	health.MigrationVersion = version

	if health.FetchHealth, err = s.store.GetFetchHealth(1); err != nil {
		health.Errors = append(health.Errors, "fetch health: "+err.Error())
	}

	recent, err := s.store.GetRecentFetchErrors(5)
	if err != nil {
		health.Errors = append(health.Errors, "fetch errors: "+err.Error())
	}
	for _, run := range recent {
		health.RecentErrors = append(health.RecentErrors, FetchErrorView{
			Region:    run.Region,
			Trigger:   run.Trigger,
			StartedAt: run.StartedAt,
			Kind:      run.ErrorKind.String,
			Source:    run.ErrorSource.String,
			Message:   run.ErrorMessage.String,
		})
	}

	for _, h := range health.FetchHealth {
		if h.FailedRuns > 0 && h.SuccessRuns == 0 {
			health.Status = "degraded"
		}
	}

	status := http.StatusOK
	if len(health.Errors) > 0 {
		health.Status = "error"
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, health)
}
