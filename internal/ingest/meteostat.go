package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/AdrienSalicis/WindDatas/internal/httputil"
	"github.com/AdrienSalicis/WindDatas/internal/models"
)

const (
	meteostatBaseURL = "https://meteostat.p.rapidapi.com"
	meteostatHost    = "meteostat.p.rapidapi.com"
	// daily endpoint rejects windows longer than ten years
	meteostatChunkYears = 10
)

// Meteostat fetches daily station data from the Meteostat JSON API.
type Meteostat struct {
	BaseURL string
	apiKey  string
	client  *httputil.Client
}

func NewMeteostat(apiKey string, rps float64) *Meteostat {
	return &Meteostat{
		BaseURL: meteostatBaseURL,
		apiKey:  apiKey,
		client:  httputil.New(httputil.Options{Name: string(models.ProviderMeteostat), RequestsPerSecond: rps, Burst: 1}),
	}
}

func (f *Meteostat) Provider() models.Provider { return models.ProviderMeteostat }

func (f *Meteostat) Chunks(req Request) []Request { return spanChunks(req, meteostatChunkYears) }

func (f *Meteostat) FetchChunk(ctx context.Context, req Request) (*Payload, error) {
	if err := requireStation(f.Provider(), req); err != nil {
		return nil, err
	}
	if f.apiKey == "" {
		return nil, errors.New("meteostat api key not configured")
	}

	q := url.Values{}
	q.Set("station", req.Station.ID)
	q.Set("start", req.Start.Format(dateLayout))
	q.Set("end", req.End.Format(dateLayout))
	endpoint := f.BaseURL + "/stations/daily?" + q.Encode()

	header := http.Header{}
	header.Set("x-rapidapi-key", f.apiKey)
	header.Set("x-rapidapi-host", meteostatHost)

	resp, err := f.client.Get(ctx, endpoint, header)
	if err != nil {
		return nil, err
	}
	switch resp.Status {
	case http.StatusOK:
		return &Payload{Endpoint: endpoint, Status: resp.Status, Body: resp.Body}, nil
	case http.StatusNoContent, http.StatusNotFound:
		return nil, ErrNoData
	default:
		return nil, fmt.Errorf("meteostat: status %d: %s", resp.Status, truncate(resp.Body, 200))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
