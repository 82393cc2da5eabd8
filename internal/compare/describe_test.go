package compare

import (
	"math"
	"testing"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// Stratified samples from the inverse CDF give near-exact MLE estimates.
func weibullSample(n int, shape, scale float64) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		u := (float64(i) + 0.5) / float64(n)
		xs[i] = scale * math.Pow(-math.Log(1-u), 1/shape)
	}
	return xs
}

func gumbelSample(n int, loc, scale float64) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		u := (float64(i) + 0.5) / float64(n)
		xs[i] = loc - scale*math.Log(-math.Log(u))
	}
	return xs
}

func TestFitWeibull(t *testing.T) {
	fit, ok := FitWeibull(weibullSample(500, 2, 6))
	if !ok {
		t.Fatal("FitWeibull ok = false")
	}
	if !approx(fit.Shape, 2, 0.05) {
		t.Errorf("Shape = %v, want ~2", fit.Shape)
	}
	if !approx(fit.Scale, 6, 0.05) {
		t.Errorf("Scale = %v, want ~6", fit.Scale)
	}
	if fit.Location != 0 {
		t.Errorf("Location = %v, want 0", fit.Location)
	}
}

func TestFitWeibull_IgnoresCalmDays(t *testing.T) {
	xs := append(weibullSample(500, 2, 6), 0, 0, 0)
	fit, ok := FitWeibull(xs)
	if !ok || !approx(fit.Shape, 2, 0.05) {
		t.Errorf("fit = %+v, %v; want shape ~2", fit, ok)
	}
}

func TestFitGumbel(t *testing.T) {
	fit, ok := FitGumbel(gumbelSample(500, 10, 3))
	if !ok {
		t.Fatal("FitGumbel ok = false")
	}
	if !approx(fit.Location, 10, 0.05) {
		t.Errorf("Location = %v, want ~10", fit.Location)
	}
	if !approx(fit.Scale, 3, 0.05) {
		t.Errorf("Scale = %v, want ~3", fit.Scale)
	}
}

func TestFit_Degenerate(t *testing.T) {
	if _, ok := FitGumbel([]float64{4, 4, 4}); ok {
		t.Error("FitGumbel on constant sample ok = true, want false")
	}
	if _, ok := FitWeibull([]float64{0, -1}); ok {
		t.Error("FitWeibull without positive values ok = true, want false")
	}
}

func TestDescribe(t *testing.T) {
	small := []float64{1, 2, 3, 4}
	d, ok := Describe("era5", models.VariableSpeed, small)
	if !ok {
		t.Fatal("Describe ok = false")
	}
	if d.Count != 4 || d.Mean != 2.5 || d.Median != 2.5 || d.Min != 1 || d.Max != 4 {
		t.Errorf("Describe = %+v", d)
	}
	if !approx(d.P90, 3.7, 1e-9) || !approx(d.P95, 3.85, 1e-9) || !approx(d.P99, 3.97, 1e-9) {
		t.Errorf("percentiles = %v/%v/%v", d.P90, d.P95, d.P99)
	}
	if d.Weibull != nil || d.Gumbel != nil {
		t.Error("fits attached for n <= 50")
	}

	large, ok := Describe("era5", models.VariableGust, weibullSample(200, 2.2, 9))
	if !ok || large.Weibull == nil || large.Gumbel == nil {
		t.Fatalf("large sample fits missing: %+v", large)
	}

	dir, _ := Describe("era5", models.VariableDirection, weibullSample(200, 2, 100))
	if dir.Weibull != nil {
		t.Error("direction should not be fitted")
	}

	if _, ok := Describe("era5", models.VariableSpeed, nil); ok {
		t.Error("Describe on empty sample ok = true")
	}
}

func TestDescribeSeries(t *testing.T) {
	s := models.Series{Source: "openmeteo", Readings: []models.DailyReading{
		{Date: day(1), WindspeedMean: nf(3), WindDirection: nf(200)},
		{Date: day(2), WindspeedMean: nf(5)},
	}}
	got := DescribeSeries(s)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (no gust values)", len(got))
	}
	if got[0].Variable != models.VariableSpeed || got[0].Count != 2 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Variable != models.VariableDirection || got[1].Count != 1 {
		t.Errorf("second = %+v", got[1])
	}
}
