package ingest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/AdrienSalicis/WindDatas/internal/catalog"
	"github.com/AdrienSalicis/WindDatas/internal/httputil"
	"github.com/AdrienSalicis/WindDatas/internal/models"
)

const isdBaseURL = "https://www.ncei.noaa.gov/data/global-hourly/access"

// ISD downloads NOAA Integrated Surface Database hourly CSV files, one per
// station and year.
type ISD struct {
	BaseURL string
	client  *httputil.Client
}

func NewISD(rps float64) *ISD {
	return &ISD{
		BaseURL: isdBaseURL,
		client:  httputil.New(httputil.Options{Name: string(models.ProviderNOAAISD), RequestsPerSecond: rps, Burst: 1}),
	}
}

func (f *ISD) Provider() models.Provider { return models.ProviderNOAAISD }

func (f *ISD) Chunks(req Request) []Request { return yearChunks(req) }

func (f *ISD) FetchChunk(ctx context.Context, req Request) (*Payload, error) {
	if err := requireStation(f.Provider(), req); err != nil {
		return nil, err
	}
	usaf, wban, err := catalog.SplitISDStationID(req.Station.ID)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%d/%s%s.csv", f.BaseURL, req.Start.Year(), usaf, wban)
	resp, err := f.client.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	switch resp.Status {
	case http.StatusOK:
		return &Payload{Endpoint: url, Status: resp.Status, Body: resp.Body}, nil
	case http.StatusNotFound:
		// station has no file for this year
		return nil, ErrNoData
	default:
		return nil, fmt.Errorf("isd %s: status %d", url, resp.Status)
	}
}
