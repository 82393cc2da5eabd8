package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// SaveComparisons replaces the stored comparisons of a site with results.
func (s *Store) SaveComparisons(batchID, siteKey string, results []models.ComparisonResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM comparison_variables WHERE site_key = ?`, siteKey); err != nil {
		return fmt.Errorf("clear comparison variables: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM comparisons WHERE site_key = ?`, siteKey); err != nil {
		return fmt.Errorf("clear comparisons: %w", err)
	}

	now := time.Now().UTC()
	var batch sql.NullString
	if batchID != "" {
		batch = sql.NullString{String: batchID, Valid: true}
	}
	for _, r := range results {
		if _, err := tx.Exec(`
			INSERT INTO comparisons (site_key, source_a, source_b, overlap, computed_at, batch_id)
			VALUES (?, ?, ?, ?, ?, ?)
		`, siteKey, r.SourceA, r.SourceB, r.Overlap, now, batch); err != nil {
			return fmt.Errorf("insert comparison %s/%s: %w", r.SourceA, r.SourceB, err)
		}
		for _, v := range r.Variables {
			if _, err := tx.Exec(`
				INSERT INTO comparison_variables (site_key, source_a, source_b, variable, count,
					a_mean, a_median, a_std, a_min, a_max,
					b_mean, b_median, b_std, b_min, b_max, mean_abs_diff)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, siteKey, r.SourceA, r.SourceB, string(v.Variable), v.Count,
				v.A.Mean, v.A.Median, v.A.Std, v.A.Min, v.A.Max,
				v.B.Mean, v.B.Median, v.B.Std, v.B.Min, v.B.Max, v.MeanAbsoluteDiff); err != nil {
				return fmt.Errorf("insert comparison variable %s: %w", v.Variable, err)
			}
		}
	}

	return tx.Commit()
}

// GetComparisons returns the stored comparisons of a site ordered by source pair.
func (s *Store) GetComparisons(siteKey string) ([]models.ComparisonResult, error) {
	rows, err := s.db.Query(`
		SELECT source_a, source_b, overlap FROM comparisons
		WHERE site_key = ?
		ORDER BY source_a, source_b
	`, siteKey)
	if err != nil {
		return nil, err
	}
	var results []models.ComparisonResult
	for rows.Next() {
		var r models.ComparisonResult
		if err := rows.Scan(&r.SourceA, &r.SourceB, &r.Overlap); err != nil {
			rows.Close()
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range results {
		vars, err := s.getComparisonVariables(siteKey, results[i].SourceA, results[i].SourceB)
		if err != nil {
			return nil, fmt.Errorf("variables %s/%s: %w", results[i].SourceA, results[i].SourceB, err)
		}
		results[i].Variables = vars
	}
	return results, nil
}

func (s *Store) getComparisonVariables(siteKey, a, b string) ([]models.VariableComparison, error) {
	rows, err := s.db.Query(`
		SELECT variable, count,
			a_mean, a_median, a_std, a_min, a_max,
			b_mean, b_median, b_std, b_min, b_max, mean_abs_diff
		FROM comparison_variables
		WHERE site_key = ? AND source_a = ? AND source_b = ?
	`, siteKey, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byVariable := make(map[models.Variable]models.VariableComparison)
	for rows.Next() {
		var v models.VariableComparison
		var name string
		if err := rows.Scan(&name, &v.Count,
			&v.A.Mean, &v.A.Median, &v.A.Std, &v.A.Min, &v.A.Max,
			&v.B.Mean, &v.B.Median, &v.B.Std, &v.B.Min, &v.B.Max, &v.MeanAbsoluteDiff); err != nil {
			return nil, err
		}
		v.Variable = models.Variable(name)
		byVariable[v.Variable] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Canonical variable order rather than lexical.
	var vars []models.VariableComparison
	for _, name := range models.Variables {
		if v, ok := byVariable[name]; ok {
			vars = append(vars, v)
		}
	}
	return vars, nil
}

// SaveDescriptives replaces the stored single-source statistics of a site.
func (s *Store) SaveDescriptives(siteKey string, descriptives []models.Descriptive) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM descriptives WHERE site_key = ?`, siteKey); err != nil {
		return fmt.Errorf("clear descriptives: %w", err)
	}

	now := time.Now().UTC()
	for _, d := range descriptives {
		var wShape, wScale, gLoc, gScale sql.NullFloat64
		if d.Weibull != nil {
			wShape = sql.NullFloat64{Float64: d.Weibull.Shape, Valid: true}
			wScale = sql.NullFloat64{Float64: d.Weibull.Scale, Valid: true}
		}
		if d.Gumbel != nil {
			gLoc = sql.NullFloat64{Float64: d.Gumbel.Location, Valid: true}
			gScale = sql.NullFloat64{Float64: d.Gumbel.Scale, Valid: true}
		}
		if _, err := tx.Exec(`
			INSERT INTO descriptives (site_key, source, variable, count, mean, median, std, min, max,
				p90, p95, p99, weibull_shape, weibull_scale, gumbel_location, gumbel_scale, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, siteKey, d.Source, string(d.Variable), d.Count, d.Mean, d.Median, d.Std, d.Min, d.Max,
			d.P90, d.P95, d.P99, wShape, wScale, gLoc, gScale, now); err != nil {
			return fmt.Errorf("insert descriptive %s/%s: %w", d.Source, d.Variable, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetDescriptives(siteKey string) ([]models.Descriptive, error) {
	rows, err := s.db.Query(`
		SELECT source, variable, count, mean, median, std, min, max, p90, p95, p99,
			weibull_shape, weibull_scale, gumbel_location, gumbel_scale
		FROM descriptives
		WHERE site_key = ?
		ORDER BY source, variable
	`, siteKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Descriptive
	for rows.Next() {
		var d models.Descriptive
		var variable string
		var wShape, wScale, gLoc, gScale sql.NullFloat64
		if err := rows.Scan(&d.Source, &variable, &d.Count, &d.Mean, &d.Median, &d.Std, &d.Min, &d.Max,
			&d.P90, &d.P95, &d.P99, &wShape, &wScale, &gLoc, &gScale); err != nil {
			return nil, err
		}
		d.Variable = models.Variable(variable)
		if wShape.Valid && wScale.Valid {
			d.Weibull = &models.DistributionFit{Shape: wShape.Float64, Scale: wScale.Float64}
		}
		if gLoc.Valid && gScale.Valid {
			d.Gumbel = &models.DistributionFit{Location: gLoc.Float64, Scale: gScale.Float64}
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
