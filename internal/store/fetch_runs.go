package store

import (
	"database/sql"
	"time"
)

// FetchRun is the audit record of a single marine record aggregation.
type FetchRun struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Region       string
	Trigger      string // "api", "probe", "cli"
	Success      bool
	ErrorKind    sql.NullString
	ErrorSource  sql.NullString
	ErrorMessage sql.NullString
	QualityFlags sql.NullString
	DurationMs   sql.NullInt64
}

// StartFetchRun creates a new fetch run record and returns it.
func (s *Store) StartFetchRun(region, trigger string) (*FetchRun, error) {
	run := &FetchRun{
		StartedAt: time.Now().UTC(),
		Region:    region,
		Trigger:   trigger,
	}

	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (started_at, region, trigger, success)
		VALUES (?, ?, ?, FALSE)
	`, run.StartedAt, run.Region, run.Trigger)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteFetchRun stores the outcome of run.
func (s *Store) CompleteFetchRun(run *FetchRun) error {
	if run == nil {
		return nil
	}

	finished := time.Now().UTC()
	run.FinishedAt = sql.NullTime{Time: finished, Valid: true}
	run.DurationMs = sql.NullInt64{Int64: finished.Sub(run.StartedAt).Milliseconds(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE fetch_runs SET
			finished_at = ?,
			success = ?,
			error_kind = ?,
			error_source = ?,
			error_message = ?,
			quality_flags = ?,
			duration_ms = ?
		WHERE id = ?
	`, run.FinishedAt, run.Success, run.ErrorKind, run.ErrorSource, run.ErrorMessage,
		run.QualityFlags, run.DurationMs, run.ID)
	return err
}

// canceledKind marks runs abandoned by the caller. They are neither
// successes nor failures of the upstream sources.
const canceledKind = "canceled"

// FetchHealthSummary is a per-day, per-region rollup of fetch runs.
type FetchHealthSummary struct {
	Date         string `json:"date"`
	Region       string `json:"region"`
	TotalRuns    int    `json:"totalRuns"`
	SuccessRuns  int    `json:"successRuns"`
	FailedRuns   int    `json:"failedRuns"`
	CanceledRuns int    `json:"canceledRuns"`
}

// GetFetchHealth returns fetch health summaries for the last N days.
func (s *Store) GetFetchHealth(days int) ([]FetchHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			region,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success AND COALESCE(error_kind, '') != ? THEN 1 ELSE 0 END) as failed_runs,
			SUM(CASE WHEN NOT success AND error_kind = ? THEN 1 ELSE 0 END) as canceled_runs
		FROM fetch_runs
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY date, region
		ORDER BY date DESC, region
	`, canceledKind, canceledKind, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchHealthSummary
	for rows.Next() {
		var h FetchHealthSummary
		if err := rows.Scan(&h.Date, &h.Region, &h.TotalRuns, &h.SuccessRuns, &h.FailedRuns, &h.CanceledRuns); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// GetRecentFetchErrors returns the most recent failed runs, excluding
// canceled ones.
func (s *Store) GetRecentFetchErrors(limit int) ([]FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, region, trigger, success,
		       error_kind, error_source, error_message, quality_flags, duration_ms
		FROM fetch_runs
		WHERE success = FALSE AND finished_at IS NOT NULL
		  AND COALESCE(error_kind, '') != ?
		ORDER BY started_at DESC
		LIMIT ?
	`, canceledKind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchRun
	for rows.Next() {
		var r FetchRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Region, &r.Trigger, &r.Success,
			&r.ErrorKind, &r.ErrorSource, &r.ErrorMessage, &r.QualityFlags, &r.DurationMs); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
