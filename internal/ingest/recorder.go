package ingest

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/lox/marinedash/internal/models"
	"github.com/lox/marinedash/internal/store"
)

// Fetcher produces a marine record for a region.
type Fetcher interface {
	Fetch(ctx context.Context, region models.Region) (*models.MarineRecord, error)
}

// Recorder wraps a Fetcher and writes a fetch run audit row for every call.
// The store is optional.
type Recorder struct {
	fetcher Fetcher
	store   *store.Store
	logger  zerolog.Logger
}

func NewRecorder(f Fetcher, st *store.Store, logger zerolog.Logger) *Recorder {
	return &Recorder{fetcher: f, store: st, logger: logger.With().Str("component", "recorder").Logger()}
}

// Fetch aggregates region and returns the record with its quality flags.
func (r *Recorder) Fetch(ctx context.Context, region models.Region, trigger string) (*models.MarineRecord, []string, error) {
	var run *store.FetchRun
	if r.store != nil {
		var err error
		run, err = r.store.StartFetchRun(string(region), trigger)
		if err != nil {
			r.logger.Warn().Err(err).Msg("start fetch run")
		}
	}

	rec, err := r.fetcher.Fetch(ctx, region)

	var flags []string
	if err == nil {
		flags = ValidateRecord(rec)
		if len(flags) > 0 {
			r.logger.Warn().Str("region", string(region)).Strs("flags", flags).Msg("quality flags raised")
		}
	}

	if run != nil {
		run.Success = err == nil
		if err != nil {
			run.ErrorKind = sql.NullString{String: Kind(err), Valid: true}
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
			if src := Source(err); src != "" {
				run.ErrorSource = sql.NullString{String: src, Valid: true}
			}
		}
		if q := QualityFlagsToJSON(flags); q != "" {
			run.QualityFlags = sql.NullString{String: q, Valid: true}
		}
		if cerr := r.store.CompleteFetchRun(run); cerr != nil {
			r.logger.Warn().Err(cerr).Msg("complete fetch run")
		}
	}

	return rec, flags, err
}
