package api

import (
	"errors"
	"net/http"

	"github.com/lox/marinedash/internal/imagegen"
)

// handleChart serves a PNG trend chart of one metric's history.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	region, ok := regionParam(w, r)
	if !ok {
		return
	}
	metric, ok := metricParam(w, r)
	if !ok {
		return
	}

	rec, err := s.imageRecord(r.Context(), region)
	if err != nil {
		writeFetchError(w, err)
		return
	}

	key := imageKey("chart", rec, string(metric))
	if data, ok := s.images.Get(key); ok {
		servePNG(w, data)
		return
	}

	series, _ := rec.Series(metric)
	data, err := imagegen.GenerateChart(metric.Info(), series)
	if err != nil {
		if errors.Is(err, imagegen.ErrEmptySeries) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.logger.Error().Err(err).Str("key", key).Msg("chart render failed")
		http.Error(w, "Chart rendering failed", http.StatusInternalServerError)
		return
	}

	s.images.Set(key, data)
	servePNG(w, data)
}

// handleCard serves a share card with the region's current values.
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	region, ok := regionParam(w, r)
	if !ok {
		return
	}

	rec, err := s.imageRecord(r.Context(), region)
	if err != nil {
		writeFetchError(w, err)
		return
	}

	key := imageKey("card", rec)
	if data, ok := s.images.Get(key); ok {
		servePNG(w, data)
		return
	}

	data, err := imagegen.GenerateCard(rec)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("card render failed")
		http.Error(w, "Card rendering failed", http.StatusInternalServerError)
		return
	}

	s.images.Set(key, data)
	servePNG(w, data)
}

func servePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}
