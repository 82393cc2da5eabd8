package compare

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// MinFitSamples is the sample size above which distributions are fitted.
const MinFitSamples = 50

const (
	fitMaxIter   = 200
	fitTolerance = 1e-10
)

// Describe computes single-source statistics for one variable. Weibull and
// Gumbel fits are attached for non-circular variables with more than
// MinFitSamples values. It returns false for an empty sample.
func Describe(source string, v models.Variable, values []float64) (models.Descriptive, bool) {
	if len(values) == 0 {
		return models.Descriptive{}, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := Summarize(values)
	d := models.Descriptive{
		Source:   source,
		Variable: v,
		Count:    len(values),
		Mean:     s.Mean,
		Median:   s.Median,
		Std:      s.Std,
		Min:      s.Min,
		Max:      s.Max,
		P90:      Quantile(sorted, 0.90),
		P95:      Quantile(sorted, 0.95),
		P99:      Quantile(sorted, 0.99),
	}
	if !v.Circular() && len(values) > MinFitSamples {
		if fit, ok := FitWeibull(values); ok {
			d.Weibull = &fit
		}
		if fit, ok := FitGumbel(values); ok {
			d.Gumbel = &fit
		}
	}
	return d, true
}

// DescribeSeries runs Describe for every variable of a daily series.
func DescribeSeries(series models.Series) []models.Descriptive {
	var out []models.Descriptive
	for _, v := range models.Variables {
		var values []float64
		for _, r := range series.Readings {
			if x := v.Value(r); x.Valid {
				values = append(values, x.Float64)
			}
		}
		if d, ok := Describe(series.Source, v, values); ok {
			out = append(out, d)
		}
	}
	return out
}

// FitWeibull estimates a two-parameter Weibull (location fixed at 0) by
// maximum likelihood. Non-positive values are ignored.
func FitWeibull(values []float64) (models.DistributionFit, bool) {
	var xs, logs []float64
	for _, x := range values {
		if x > 0 {
			xs = append(xs, x)
			logs = append(logs, math.Log(x))
		}
	}
	if len(xs) < 2 {
		return models.DistributionFit{}, false
	}
	meanLog := stat.Mean(logs, nil)

	// Newton on the profile likelihood equation for the shape k:
	// sum(x^k ln x)/sum(x^k) - 1/k - mean(ln x) = 0
	k := 1.0
	if cv := stat.StdDev(xs, nil) / stat.Mean(xs, nil); cv > 0 {
		k = math.Pow(cv, -1.086)
	}
	for i := 0; i < fitMaxIter; i++ {
		var s0, s1, s2 float64
		for j, x := range xs {
			xk := math.Pow(x, k)
			s0 += xk
			s1 += xk * logs[j]
			s2 += xk * logs[j] * logs[j]
		}
		g := s1/s0 - 1/k - meanLog
		dg := (s2*s0-s1*s1)/(s0*s0) + 1/(k*k)
		step := g / dg
		next := k - step
		if next <= 0 {
			next = k / 2
		}
		if math.Abs(next-k) < fitTolerance*k {
			k = next
			break
		}
		k = next
	}
	if math.IsNaN(k) || math.IsInf(k, 0) || k <= 0 {
		return models.DistributionFit{}, false
	}

	var sum float64
	for _, x := range xs {
		sum += math.Pow(x, k)
	}
	scale := math.Pow(sum/float64(len(xs)), 1/k)
	return models.DistributionFit{Shape: k, Scale: scale}, true
}

// FitGumbel estimates a right-skewed Gumbel (location, scale) by maximum
// likelihood.
func FitGumbel(values []float64) (models.DistributionFit, bool) {
	if len(values) < 2 {
		return models.DistributionFit{}, false
	}
	mean := stat.Mean(values, nil)
	std := stat.StdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		return models.DistributionFit{}, false
	}
	lo := values[0]
	for _, x := range values {
		lo = math.Min(lo, x)
	}

	// Newton on beta - mean + sum(x w)/sum(w) = 0 with w = exp(-x/beta).
	// Weights are shifted by the minimum to stay finite.
	beta := std * math.Sqrt(6) / math.Pi
	for i := 0; i < fitMaxIter; i++ {
		var a, b, c float64
		for _, x := range values {
			w := math.Exp(-(x - lo) / beta)
			a += w
			b += x * w
			c += x * x * w
		}
		f := beta - mean + b/a
		df := 1 + (c*a-b*b)/(a*a*beta*beta)
		next := beta - f/df
		if next <= 0 {
			next = beta / 2
		}
		if math.Abs(next-beta) < fitTolerance*beta {
			beta = next
			break
		}
		beta = next
	}

	var sum float64
	for _, x := range values {
		sum += math.Exp(-(x - lo) / beta)
	}
	loc := lo - beta*math.Log(sum/float64(len(values)))
	if math.IsNaN(loc) || math.IsNaN(beta) {
		return models.DistributionFit{}, false
	}
	return models.DistributionFit{Scale: beta, Location: loc}, true
}
