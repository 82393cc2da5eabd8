package store

import (
	"database/sql"
	"time"
)

const (
	BatchRunning   = "running"
	BatchCompleted = "completed"
	BatchFailed    = "failed"
)

// BatchRun is one invocation of the pipeline over a site list.
type BatchRun struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    sql.NullTime
	StartDate     string
	EndDate       string
	SitesTotal    int
	SitesCompared int
	SitesSkipped  int
	SitesFailed   int
	Status        string
}

func (s *Store) StartBatch(id string, start, end time.Time, sites int) (*BatchRun, error) {
	b := &BatchRun{
		ID:         id,
		StartedAt:  time.Now().UTC(),
		StartDate:  start.Format(dateLayout),
		EndDate:    end.Format(dateLayout),
		SitesTotal: sites,
		Status:     BatchRunning,
	}
	_, err := s.db.Exec(`
		INSERT INTO batch_runs (id, started_at, start_date, end_date, sites_total, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.ID, b.StartedAt, b.StartDate, b.EndDate, b.SitesTotal, b.Status)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) CompleteBatch(b *BatchRun) error {
	if b == nil {
		return nil
	}
	b.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	if b.Status == BatchRunning {
		b.Status = BatchCompleted
	}
	_, err := s.db.Exec(`
		UPDATE batch_runs SET
			finished_at = ?,
			sites_compared = ?,
			sites_skipped = ?,
			sites_failed = ?,
			status = ?
		WHERE id = ?
	`, b.FinishedAt, b.SitesCompared, b.SitesSkipped, b.SitesFailed, b.Status, b.ID)
	return err
}

// ListBatches returns the most recent batches first.
func (s *Store) ListBatches(limit int) ([]BatchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, start_date, end_date,
			sites_total, sites_compared, sites_skipped, sites_failed, status
		FROM batch_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BatchRun
	for rows.Next() {
		var b BatchRun
		if err := rows.Scan(&b.ID, &b.StartedAt, &b.FinishedAt, &b.StartDate, &b.EndDate,
			&b.SitesTotal, &b.SitesCompared, &b.SitesSkipped, &b.SitesFailed, &b.Status); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}
