package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/AdrienSalicis/WindDatas/internal/httputil"
	"github.com/AdrienSalicis/WindDatas/internal/models"
)

const openMeteoBaseURL = "https://archive-api.open-meteo.com/v1/archive"

// OpenMeteo fetches reanalysis-backed archive data for the site coordinates
// in a single request: daily speed and gust plus hourly direction.
type OpenMeteo struct {
	BaseURL string
	client  *httputil.Client
}

func NewOpenMeteo(rps float64) *OpenMeteo {
	return &OpenMeteo{
		BaseURL: openMeteoBaseURL,
		client:  httputil.New(httputil.Options{Name: string(models.ProviderOpenMeteo), RequestsPerSecond: rps, Burst: 1}),
	}
}

func (f *OpenMeteo) Provider() models.Provider { return models.ProviderOpenMeteo }

func (f *OpenMeteo) Chunks(req Request) []Request { return singleChunk(req) }

func (f *OpenMeteo) FetchChunk(ctx context.Context, req Request) (*Payload, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(req.Site.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(req.Site.Longitude, 'f', -1, 64))
	q.Set("start_date", req.Start.Format(dateLayout))
	q.Set("end_date", req.End.Format(dateLayout))
	q.Set("daily", "windspeed_10m_max,windspeed_10m_mean,windgusts_10m_max")
	q.Set("hourly", "winddirection_10m")
	q.Set("timezone", "auto")
	endpoint := f.BaseURL + "?" + q.Encode()

	resp, err := f.client.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("open-meteo: status %d: %s", resp.Status, truncate(resp.Body, 200))
	}
	return &Payload{Endpoint: endpoint, Status: resp.Status, Body: resp.Body}, nil
}
