package store

import (
	"database/sql"
	"time"
)

// Analysis is a generated narrative report for a region.
type Analysis struct {
	ID        string    `json:"id"`
	Region    string    `json:"region"`
	CreatedAt time.Time `json:"createdAt"`
	Model     string    `json:"model"`
	Body      string    `json:"body"`
	Snapshot  string    `json:"snapshot,omitempty"` // JSON of the current values the report was built from
}

func (s *Store) InsertAnalysis(a Analysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO analyses (id, region, created_at, model, body, snapshot_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.Region, a.CreatedAt, a.Model, a.Body, sql.NullString{String: a.Snapshot, Valid: a.Snapshot != ""})
	return err
}

// GetLatestAnalysis returns the newest analysis for region, or nil if none.
func (s *Store) GetLatestAnalysis(region string) (*Analysis, error) {
	list, err := s.ListAnalyses(region, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// ListAnalyses returns analyses newest first. An empty region lists all.
func (s *Store) ListAnalyses(region string, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, region, created_at, model, body, snapshot_json
		FROM analyses
		WHERE ? = '' OR region = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, region, region, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Analysis
	for rows.Next() {
		var a Analysis
		var snapshot sql.NullString
		if err := rows.Scan(&a.ID, &a.Region, &a.CreatedAt, &a.Model, &a.Body, &snapshot); err != nil {
			return nil, err
		}
		a.Snapshot = snapshot.String
		results = append(results, a)
	}
	return results, rows.Err()
}
