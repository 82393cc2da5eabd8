package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/AdrienSalicis/WindDatas/internal/httputil"
	"github.com/AdrienSalicis/WindDatas/internal/models"
)

const (
	meteoFranceBaseURL  = "https://public-api.meteofrance.fr/public/DPClim/v1"
	meteoFrancePollMax  = 60
	meteoFrancePollWait = 2 * time.Second
)

var errOrderPending = errors.New("order not ready")

// MeteoFrance fetches daily climatological records through the asynchronous
// DPClim API: an order is placed per station and year, then its file is
// polled until the service has produced it.
type MeteoFrance struct {
	BaseURL      string
	PollInterval time.Duration
	token        string
	pollMax      int
	client       *httputil.Client
}

func NewMeteoFrance(token string, pollMax int) *MeteoFrance {
	if pollMax <= 0 {
		pollMax = meteoFrancePollMax
	}
	return &MeteoFrance{
		BaseURL:      meteoFranceBaseURL,
		PollInterval: meteoFrancePollWait,
		token:        token,
		pollMax:      pollMax,
		// DPClim allows 50 requests per minute
		client: httputil.New(httputil.Options{Name: string(models.ProviderMeteoFrance), RequestsPerSecond: 50.0 / 60, Burst: 1}),
	}
}

func (f *MeteoFrance) Provider() models.Provider { return models.ProviderMeteoFrance }

func (f *MeteoFrance) Chunks(req Request) []Request { return yearChunks(req) }

func (f *MeteoFrance) header() http.Header {
	h := http.Header{}
	token := f.token
	if !strings.HasPrefix(token, "Bearer ") {
		token = "Bearer " + token
	}
	h.Set("Authorization", token)
	h.Set("accept", "*/*")
	return h
}

func (f *MeteoFrance) FetchChunk(ctx context.Context, req Request) (*Payload, error) {
	if err := requireStation(f.Provider(), req); err != nil {
		return nil, err
	}
	if f.token == "" {
		return nil, errors.New("meteo-france token not configured")
	}

	orderID, err := f.order(ctx, req)
	if err != nil {
		return nil, err
	}
	return f.download(ctx, orderID)
}

type meteoFranceOrder struct {
	ID       string `json:"id-cmde"`
	Response struct {
		Return string `json:"return"`
	} `json:"elaboreProduitAvecDemandeResponse"`
}

func (f *MeteoFrance) order(ctx context.Context, req Request) (string, error) {
	q := url.Values{}
	q.Set("id-station", req.Station.ID)
	q.Set("date-deb-periode", req.Start.Format(dateLayout)+"T00:00:00Z")
	q.Set("date-fin-periode", req.End.Format(dateLayout)+"T23:59:59Z")
	endpoint := f.BaseURL + "/commande-station/quotidienne?" + q.Encode()

	resp, err := f.client.Get(ctx, endpoint, f.header())
	if err != nil {
		return "", err
	}
	if resp.Status == http.StatusNotFound {
		return "", ErrNoData
	}
	if resp.Status != http.StatusAccepted {
		return "", fmt.Errorf("meteo-france order: status %d: %s", resp.Status, truncate(resp.Body, 200))
	}

	var o meteoFranceOrder
	if err := json.Unmarshal(resp.Body, &o); err != nil {
		return "", fmt.Errorf("decode order: %w", err)
	}
	id := o.ID
	if id == "" {
		id = o.Response.Return
	}
	if id == "" {
		return "", errors.New("meteo-france order: no order id in response")
	}
	return id, nil
}

func (f *MeteoFrance) download(ctx context.Context, orderID string) (*Payload, error) {
	endpoint := f.BaseURL + "/commande/fichier?" + url.Values{"id-cmde": {orderID}}.Encode()

	var payload *Payload
	operation := func() error {
		resp, err := f.client.Get(ctx, endpoint, f.header())
		if err != nil {
			return backoff.Permanent(err)
		}
		switch resp.Status {
		case http.StatusOK, http.StatusCreated:
			payload = &Payload{Endpoint: endpoint, Status: resp.Status, Body: resp.Body}
			return nil
		case http.StatusNoContent:
			return errOrderPending
		case http.StatusNotFound, http.StatusGone:
			return backoff.Permanent(ErrNoData)
		default:
			return backoff.Permanent(fmt.Errorf("meteo-france file: status %d: %s", resp.Status, truncate(resp.Body, 200)))
		}
	}

	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(f.PollInterval), uint64(f.pollMax))
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		if errors.Is(err, errOrderPending) {
			return nil, fmt.Errorf("meteo-france order %s: not ready after %d polls", orderID, f.pollMax)
		}
		return nil, err
	}
	return payload, nil
}
