package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
	"github.com/AdrienSalicis/WindDatas/internal/store"
)

const dateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// intParam reads a positive integer query parameter, falling back to def.
func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// site resolves the {site} path value, writing a 404 when it is unknown.
func (s *Server) site(w http.ResponseWriter, r *http.Request) (*models.Site, bool) {
	site, err := s.store.GetSite(r.PathValue("site"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if site == nil {
		writeError(w, http.StatusNotFound, "unknown site "+r.PathValue("site"))
		return nil, false
	}
	return site, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.MigrationVersion()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, HealthStatus{Status: "error", Error: err.Error()})
		return
	}
	health := HealthStatus{Status: "ok", SchemaVersion: version}

	batches, err := s.store.ListBatches(1)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, HealthStatus{Status: "error", Error: err.Error()})
		return
	}
	if len(batches) > 0 {
		b := batchView(batches[0])
		health.LastBatch = &b
		if b.Status == store.BatchFailed {
			health.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.ListSites()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]SiteView, 0, len(sites))
	for _, site := range sites {
		views = append(views, siteView(site))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSiteStations(w http.ResponseWriter, r *http.Request) {
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	stations, err := s.store.GetSiteStations(site.Key())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]StationView, 0, len(stations))
	for _, ss := range stations {
		views = append(views, stationView(ss))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	coverage, err := s.store.GetCoverage(site.Key())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, coverage)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	site, ok := s.site(w, r)
	if !ok {
		return
	}

	var start, end time.Time
	for name, dst := range map[string]*time.Time{"start": &start, "end": &end} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+name+" date "+strconv.Quote(v))
			return
		}
		*dst = t
	}

	series, err := s.store.GetDailyReadings(site.Key(), r.PathValue("source"), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, seriesView(series))
}

func (s *Server) handleComparisons(w http.ResponseWriter, r *http.Request) {
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	results, err := s.store.GetComparisons(site.Key())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]ComparisonView, 0, len(results))
	for _, res := range results {
		views = append(views, comparisonView(res))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleDescriptives(w http.ResponseWriter, r *http.Request) {
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	ds, err := s.store.GetDescriptives(site.Key())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]DescriptiveView, 0, len(ds))
	for _, d := range ds {
		views = append(views, descriptiveView(d))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.store.ListBatches(intParam(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]BatchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, batchView(b))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleIngestHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.store.GetIngestHealth(intParam(r, "days", 7))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handleIngestErrors(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.GetRecentIngestErrors(intParam(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]IngestErrorView, 0, len(runs))
	for _, run := range runs {
		views = append(views, ingestErrorView(run))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePayloadStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetRawPayloadStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
