package api

import (
	"encoding/json"
	"net/http"

	"github.com/lox/marinedash/internal/ingest"
	"github.com/lox/marinedash/internal/narrative"
)

// FetchFailureMessage is the banner shown when live data cannot be loaded.
const FetchFailureMessage = "실시간 해양 데이터를 불러오는 데 실패했습니다. 잠시 후 다시 시도해주세요."

const kindNarrative = "narrative"

type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusForKind maps an error kind to an HTTP status.
func statusForKind(kind string) int {
	switch kind {
	case ingest.KindUnknownRegion:
		return http.StatusBadRequest
	case ingest.KindUpstream:
		return http.StatusBadGateway
	case ingest.KindNoData, ingest.KindSchemaDrift, ingest.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeFetchError reports an aggregation failure with the localized banner.
func writeFetchError(w http.ResponseWriter, err error) {
	kind := ingest.Kind(err)
	writeJSON(w, statusForKind(kind), ErrorResponse{
		Error:   err.Error(),
		Kind:    kind,
		Message: FetchFailureMessage,
	})
}

func writeNarrativeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Kind:    kindNarrative,
		Message: narrative.FailureMessage,
	})
}
