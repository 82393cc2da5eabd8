package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// ERA5 reads single-levels CSV extracts prepared out of band (the CDS API
// queues requests for hours). Files are named <site key>.csv.
type ERA5 struct {
	Dir string
}

func NewERA5(dir string) *ERA5 {
	return &ERA5{Dir: dir}
}

func (f *ERA5) Provider() models.Provider { return models.ProviderERA5 }

func (f *ERA5) Chunks(req Request) []Request { return singleChunk(req) }

func (f *ERA5) FetchChunk(ctx context.Context, req Request) (*Payload, error) {
	if f.Dir == "" {
		return nil, errors.New("era5 directory not configured")
	}
	path := filepath.Join(f.Dir, req.Site.Key()+".csv")
	body, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Payload{Endpoint: path, Body: body}, nil
}
