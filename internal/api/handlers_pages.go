package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/lox/marinedash/internal/ingest"
	"github.com/lox/marinedash/internal/models"
	"github.com/lox/marinedash/internal/store"
)

// IndexData is the view model for the dashboard page.
type IndexData struct {
	Regions          []models.RegionConfig
	Selected         models.RegionConfig
	Record           *models.MarineRecord
	Cards            []MetricCard
	QualityFlags     []string
	Error            string
	ErrorKind        string
	Analysis         *store.Analysis
	NarrativeEnabled bool
}

// MetricCard is one metric tile on the dashboard.
type MetricCard struct {
	Info       models.MetricInfo
	Value      string
	Points     int
	ChartURL   string
	HistoryURL string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	region := models.EastSea
	if q := r.URL.Query().Get("region"); q != "" {
		parsed, err := models.ParseRegion(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		region = parsed
	}
	selected, _ := region.Config()

	data := IndexData{
		Selected:         selected,
		NarrativeEnabled: s.narrator != nil,
	}
	for _, rg := range models.Regions() {
		cfg, _ := rg.Config()
		data.Regions = append(data.Regions, cfg)
	}

	rec, flags, err := s.recorder.Fetch(r.Context(), region, "api")
	if err != nil {
		data.Error = FetchFailureMessage
		data.ErrorKind = ingest.Kind(err)
		w.WriteHeader(statusForKind(data.ErrorKind))
	} else {
		s.snapshots.put(rec)
		data.Record = rec
		data.QualityFlags = flags
		data.Cards = metricCards(rec)
	}

	if analysis, err := s.store.GetLatestAnalysis(string(region)); err != nil {
		s.logger.Warn().Err(err).Msg("load latest analysis")
	} else {
		data.Analysis = analysis
	}

	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error().Err(err).Msg("template error")
	}
}

func metricCards(rec *models.MarineRecord) []MetricCard {
	cards := make([]MetricCard, 0, len(models.Metrics()))
	for _, m := range models.Metrics() {
		info := m.Info()
		series, _ := rec.Series(m)

		q := url.Values{}
		q.Set("region", string(rec.Region))
		q.Set("metric", string(m))

		cards = append(cards, MetricCard{
			Info:       info,
			Value:      fmt.Sprintf("%.*f", info.Precision, series.Current),
			Points:     len(series.History),
			ChartURL:   "/chart?" + q.Encode(),
			HistoryURL: "/api/marine/history?" + q.Encode(),
		})
	}
	return cards
}
