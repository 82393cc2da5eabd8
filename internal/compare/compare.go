package compare

import (
	"database/sql"
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/AdrienSalicis/WindDatas/internal/merge"
	"github.com/AdrienSalicis/WindDatas/internal/models"
)

var ErrInsufficientSources = errors.New("fewer than two usable sources")

// Compare summarizes each requested variable over the aligned rows where both
// sides are non-null. It returns false when there is nothing to compare:
// no overlapping dates, or no variable with a non-null pair.
func Compare(aligned merge.Aligned, variables []models.Variable) (*models.ComparisonResult, bool) {
	if aligned.Len() == 0 {
		return nil, false
	}

	result := &models.ComparisonResult{
		SourceA: aligned.SourceA,
		SourceB: aligned.SourceB,
		Overlap: aligned.Len(),
	}
	for _, v := range variables {
		var as, bs []float64
		for _, row := range aligned.Rows {
			a, b := v.Value(row.A), v.Value(row.B)
			if !a.Valid || !b.Valid {
				continue
			}
			as = append(as, a.Float64)
			bs = append(bs, b.Float64)
		}
		if len(as) == 0 {
			continue
		}

		diffs := make([]float64, len(as))
		for i := range as {
			if v.Circular() {
				diffs[i] = AngularDistance(as[i], bs[i])
			} else {
				diffs[i] = math.Abs(as[i] - bs[i])
			}
		}
		result.Variables = append(result.Variables, models.VariableComparison{
			Variable:         v,
			Count:            len(as),
			A:                Summarize(as),
			B:                Summarize(bs),
			MeanAbsoluteDiff: stat.Mean(diffs, nil),
		})
	}

	if len(result.Variables) == 0 {
		return nil, false
	}
	return result, true
}

// Pair is one compared source pair with the rows the comparison used.
type Pair struct {
	Aligned merge.Aligned
	Result  models.ComparisonResult
}

// Pairs compares every unordered pair of non-empty series in input order.
// Pairs without overlap are omitted.
func Pairs(series []models.Series) ([]Pair, error) {
	var usable []models.Series
	for _, s := range series {
		if len(s.Readings) > 0 {
			usable = append(usable, s)
		}
	}
	if len(usable) < 2 {
		return nil, ErrInsufficientSources
	}

	var pairs []Pair
	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			a, b := usable[i], usable[j]
			aligned := merge.Series(a.Source, a.Readings, b.Source, b.Readings)
			if res, ok := Compare(aligned, models.Variables); ok {
				pairs = append(pairs, Pair{Aligned: aligned, Result: *res})
			}
		}
	}
	return pairs, nil
}

// Pairwise is Pairs without the aligned rows.
func Pairwise(series []models.Series) ([]models.ComparisonResult, error) {
	pairs, err := Pairs(series)
	if err != nil {
		return nil, err
	}
	results := make([]models.ComparisonResult, 0, len(pairs))
	for _, p := range pairs {
		results = append(results, p.Result)
	}
	return results, nil
}

// AngularDistance is the smaller arc between two bearings in degrees.
func AngularDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Summarize computes mean, median, sample standard deviation, min and max.
// xs must be non-empty.
func Summarize(xs []float64) models.SummaryStats {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	s := models.SummaryStats{
		Mean:   stat.Mean(xs, nil),
		Median: Quantile(sorted, 0.5),
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
	}
	if len(xs) > 1 {
		s.Std = sql.NullFloat64{Float64: stat.StdDev(xs, nil), Valid: true}
	}
	return s
}

// Quantile interpolates linearly between the closest ranks of a sorted
// sample, matching the default of most dataframe libraries.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}
