package ingest

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AdrienSalicis/WindDatas/internal/models"
	"github.com/AdrienSalicis/WindDatas/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func TestCollector_Collect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"daily_units":{"windspeed_10m_mean":"m/s","windgusts_10m_max":"m/s"},
			"daily":{"time":["2019-12-31","2020-01-01","2020-01-02"],
			         "windspeed_10m_mean":[1,2,3],"windgusts_10m_max":[4,5,6]}
		}`))
	}))
	defer srv.Close()

	om := NewOpenMeteo(0)
	om.BaseURL = srv.URL
	st := setupTestStore(t)
	c := NewCollector(st, map[models.Provider]Fetcher{models.ProviderOpenMeteo: om}, nil)

	req := Request{Site: testSite, Start: date(2020, 1, 1), End: date(2020, 1, 2)}
	series, err := c.Collect(context.Background(), "batch-1", "openmeteo", models.ProviderOpenMeteo, req)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(series.Readings) != 2 {
		t.Fatalf("len(Readings) = %d, want 2 after clipping", len(series.Readings))
	}
	if series.Readings[0].WindspeedMean.Float64 != 2 || series.Readings[1].WindspeedGust.Float64 != 6 {
		t.Errorf("readings = %+v", series.Readings)
	}

	stored, err := st.GetDailyReadings(testSite.Key(), "openmeteo", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GetDailyReadings: %v", err)
	}
	if len(stored.Readings) != 2 {
		t.Errorf("stored = %d, want 2", len(stored.Readings))
	}

	runs, err := st.GetBatchIngestRuns("batch-1")
	if err != nil {
		t.Fatalf("GetBatchIngestRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	if !runs[0].Success || runs[0].RecordsParsed.Int64 != 3 || runs[0].RecordsStored.Int64 != 2 {
		t.Errorf("run = %+v", runs[0])
	}

	payloads, err := st.GetSitePayloads("openmeteo", testSite.Key(), "")
	if err != nil {
		t.Fatalf("GetSitePayloads: %v", err)
	}
	if len(payloads) != 1 {
		t.Errorf("raw payloads = %d, want 1", len(payloads))
	}
}

func TestCollector_FailureIsAudited(t *testing.T) {
	st := setupTestStore(t)
	c := NewCollector(st, map[models.Provider]Fetcher{models.ProviderERA5: NewERA5("")}, nil)

	req := Request{Site: testSite, Start: date(2020, 1, 1), End: date(2020, 1, 2)}
	if _, err := c.Collect(context.Background(), "batch-2", "era5", models.ProviderERA5, req); err == nil {
		t.Fatal("expected error")
	}

	errs, err := st.GetRecentIngestErrors(10)
	if err != nil {
		t.Fatalf("GetRecentIngestErrors: %v", err)
	}
	if len(errs) != 1 || errs[0].Source != "era5" {
		t.Errorf("errors = %+v", errs)
	}

	if _, err := c.Collect(context.Background(), "batch-2", "ghcnd1", models.ProviderGHCND, req); err == nil {
		t.Error("expected error for provider without fetcher")
	}
}

func TestClip(t *testing.T) {
	readings := []models.DailyReading{
		{Date: date(2019, 12, 31)},
		{Date: date(2020, 1, 1)},
		{Date: date(2020, 1, 2)},
		{Date: date(2020, 1, 3)},
	}
	got := Clip(readings, date(2020, 1, 1), time.Date(2020, 1, 2, 18, 0, 0, 0, time.UTC))
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Date.Equal(date(2020, 1, 1)) || !got[1].Date.Equal(date(2020, 1, 2)) {
		t.Errorf("got %v..%v", got[0].Date, got[1].Date)
	}
	if len(readings) != 4 {
		t.Error("Clip must not modify its input")
	}
}
