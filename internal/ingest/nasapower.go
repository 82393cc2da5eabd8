package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/httputil"
	"github.com/AdrienSalicis/WindDatas/internal/models"
)

const nasaPowerBaseURL = "https://power.larc.nasa.gov/api/temporal/hourly/point"

// GWS10M is not published before this date.
var nasaPowerGustStart = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// NASAPower fetches hourly MERRA-2 derived wind from the POWER point API,
// one request per year.
type NASAPower struct {
	BaseURL string
	client  *httputil.Client
}

func NewNASAPower(rps float64) *NASAPower {
	return &NASAPower{
		BaseURL: nasaPowerBaseURL,
		client:  httputil.New(httputil.Options{Name: string(models.ProviderNASAPower), RequestsPerSecond: rps, Burst: 1}),
	}
}

func (f *NASAPower) Provider() models.Provider { return models.ProviderNASAPower }

func (f *NASAPower) Chunks(req Request) []Request { return yearChunks(req) }

func nasaPowerParameters(start time.Time) string {
	if start.Before(nasaPowerGustStart) {
		return "WS10M,WD10M"
	}
	return "WS10M,WD10M,GWS10M"
}

func (f *NASAPower) FetchChunk(ctx context.Context, req Request) (*Payload, error) {
	q := url.Values{}
	q.Set("parameters", nasaPowerParameters(req.Start))
	q.Set("community", "RE")
	q.Set("latitude", strconv.FormatFloat(req.Site.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(req.Site.Longitude, 'f', -1, 64))
	q.Set("start", req.Start.Format("20060102"))
	q.Set("end", req.End.Format("20060102"))
	q.Set("format", "JSON")
	q.Set("time-standard", "UTC")
	endpoint := f.BaseURL + "?" + q.Encode()

	resp, err := f.client.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("nasa power: status %d: %s", resp.Status, truncate(resp.Body, 200))
	}
	return &Payload{Endpoint: endpoint, Status: resp.Status, Body: resp.Body}, nil
}
