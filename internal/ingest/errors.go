package ingest

import (
	"context"
	"errors"

	"github.com/lox/marinedash/internal/models"
)

var (
	ErrUnknownRegion = models.ErrUnknownRegion
	ErrUpstream      = errors.New("upstream fetch failed")
	ErrNoData        = errors.New("no data")
	ErrSchemaDrift   = errors.New("dataset schema changed")
)

// Error kinds reported to the store, metrics and API clients.
const (
	KindUnknownRegion = "unknown_region"
	KindUpstream      = "upstream"
	KindNoData        = "no_data"
	KindSchemaDrift   = "schema_drift"
	KindCanceled      = "canceled"
	KindInternal      = "internal"
)

// SourceError tags an error with the upstream source that produced it.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return e.Source + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Kind classifies err into one of the Kind* constants.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrUnknownRegion):
		return KindUnknownRegion
	case errors.Is(err, ErrSchemaDrift):
		return KindSchemaDrift
	case errors.Is(err, ErrNoData):
		return KindNoData
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	default:
		return KindInternal
	}
}

// Source returns the failing source name if err carries one.
func Source(err error) string {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Source
	}
	return ""
}
