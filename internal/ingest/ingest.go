package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/cache"
	"github.com/AdrienSalicis/WindDatas/internal/models"
	"github.com/AdrienSalicis/WindDatas/internal/normalize"
)

// ErrNoData means the provider has nothing for the requested window. It is
// not a failure; the chunk is skipped.
var ErrNoData = errors.New("no data")

const dateLayout = "2006-01-02"

// Request asks one provider for the raw data of a site over [Start, End].
// Station is nil for gridded providers, which are addressed by coordinates.
type Request struct {
	Site    models.Site
	Station *models.Station
	Start   time.Time
	End     time.Time
}

// Subject is the station id, or the site key for gridded providers.
func (r Request) Subject() string {
	if r.Station != nil {
		return r.Station.ID
	}
	return r.Site.Key()
}

func (r Request) window(start, end time.Time) Request {
	r.Start, r.End = start, end
	return r
}

// Payload is one raw provider response, ready for a normalize binding.
type Payload struct {
	Endpoint string
	Status   int
	Body     []byte
	Cached   bool
}

// Fetcher retrieves raw payloads from one provider. Requests are split into
// chunks the provider can serve in one call.
type Fetcher interface {
	Provider() models.Provider
	Chunks(req Request) []Request
	FetchChunk(ctx context.Context, req Request) (*Payload, error)
}

// Fetch retrieves every chunk of req. Cached chunks skip the network. A chunk
// that fails is logged and skipped; Fetch only fails when no chunk produced a
// payload. Only bodies the provider's binding can decode are cached, and a
// cached body that no longer decodes is evicted and refetched.
func Fetch(ctx context.Context, f Fetcher, req Request, c *cache.Cache) ([]Payload, error) {
	var payloads []Payload
	var lastErr error

	for _, chunk := range f.Chunks(req) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := cache.Key{Provider: f.Provider(), Subject: req.Subject(), Start: chunk.Start, End: chunk.End}
		if c != nil {
			if body, ok := c.Get(key); ok {
				if err := normalize.Decodable(f.Provider(), body); err == nil {
					payloads = append(payloads, Payload{Endpoint: "cache", Body: body, Cached: true})
					continue
				}
				log.Printf("ingest: evicting undecodable cache entry %s %s %s", f.Provider(), req.Subject(),
					chunk.Start.Format(dateLayout))
				if err := c.Delete(key); err != nil {
					log.Printf("ingest: %v", err)
				}
			}
		}

		p, err := f.FetchChunk(ctx, chunk)
		if errors.Is(err, ErrNoData) {
			log.Printf("ingest: %s %s %s..%s: no data", f.Provider(), req.Subject(),
				chunk.Start.Format(dateLayout), chunk.End.Format(dateLayout))
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("ingest: %s %s %s..%s: %v", f.Provider(), req.Subject(),
				chunk.Start.Format(dateLayout), chunk.End.Format(dateLayout), err)
			lastErr = err
			continue
		}

		if c != nil {
			if err := normalize.Decodable(f.Provider(), p.Body); err != nil {
				log.Printf("ingest: not caching %s %s %s..%s: %v", f.Provider(), req.Subject(),
					chunk.Start.Format(dateLayout), chunk.End.Format(dateLayout), err)
			} else if err := c.Set(key, p.Body); err != nil {
				log.Printf("ingest: cache %s %s: %v", f.Provider(), req.Subject(), err)
			}
		}
		payloads = append(payloads, *p)
	}

	if len(payloads) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("fetch %s %s: %w", f.Provider(), req.Subject(), lastErr)
		}
		return nil, ErrNoData
	}
	return payloads, nil
}

// spanChunks splits [start, end] into consecutive windows of at most the
// given number of calendar years, aligned on January 1st.
func spanChunks(req Request, years int) []Request {
	if req.End.Before(req.Start) {
		return nil
	}
	var chunks []Request
	for from := req.Start; !from.After(req.End); {
		to := time.Date(from.Year()+years-1, 12, 31, 0, 0, 0, 0, time.UTC)
		if to.After(req.End) {
			to = req.End
		}
		chunks = append(chunks, req.window(from, to))
		from = time.Date(to.Year()+1, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return chunks
}

func yearChunks(req Request) []Request {
	return spanChunks(req, 1)
}

func singleChunk(req Request) []Request {
	if req.End.Before(req.Start) {
		return nil
	}
	return []Request{req}
}

func requireStation(p models.Provider, req Request) error {
	if req.Station == nil {
		return fmt.Errorf("%s needs a resolved station", p)
	}
	return nil
}

// Config carries credentials and endpoints. Credentials are never embedded.
type Config struct {
	MeteostatKey       string
	MeteoFranceToken   string
	ERA5Dir            string
	RequestsPerSecond  float64
	MeteoFrancePollMax int
}

// NewFetchers builds one fetcher per provider. Providers lacking credentials
// are still returned; they fail on first use with a clear error.
func NewFetchers(cfg Config) map[models.Provider]Fetcher {
	return map[models.Provider]Fetcher{
		models.ProviderNOAAISD:     NewISD(cfg.RequestsPerSecond),
		models.ProviderGHCND:       NewGHCND(),
		models.ProviderMeteostat:   NewMeteostat(cfg.MeteostatKey, cfg.RequestsPerSecond),
		models.ProviderMeteoFrance: NewMeteoFrance(cfg.MeteoFranceToken, cfg.MeteoFrancePollMax),
		models.ProviderOpenMeteo:   NewOpenMeteo(cfg.RequestsPerSecond),
		models.ProviderNASAPower:   NewNASAPower(cfg.RequestsPerSecond),
		models.ProviderERA5:        NewERA5(cfg.ERA5Dir),
	}
}
