package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

// Catalog holds the station reference tables of every station-based provider.
// It is filled once at startup and read concurrently afterwards.
type Catalog struct {
	stations map[models.Provider][]models.Station
}

func New() *Catalog {
	return &Catalog{stations: make(map[models.Provider][]models.Station)}
}

func (c *Catalog) Add(provider models.Provider, stations []models.Station) {
	for i := range stations {
		stations[i].Provider = provider
	}
	c.stations[provider] = append(c.stations[provider], stations...)
}

func (c *Catalog) Stations(provider models.Provider) []models.Station {
	return c.stations[provider]
}

// Providers returns the providers that have at least one station loaded.
func (c *Catalog) Providers() []models.Provider {
	var providers []models.Provider
	for p, stations := range c.stations {
		if len(stations) > 0 {
			providers = append(providers, p)
		}
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}

// Lookup finds a station by provider and id.
func (c *Catalog) Lookup(provider models.Provider, id string) (models.Station, bool) {
	for _, st := range c.stations[provider] {
		if st.ID == id {
			return st, true
		}
	}
	return models.Station{}, false
}

// LoadFile reads a provider's reference table from disk and adds it to the catalog.
func (c *Catalog) LoadFile(provider models.Provider, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s station table: %w", provider, err)
	}
	defer f.Close()

	var stations []models.Station
	switch provider {
	case models.ProviderNOAAISD:
		stations, err = ParseISDHistory(f)
	case models.ProviderGHCND:
		stations, err = ParseGHCNDStations(f)
	case models.ProviderMeteostat:
		stations, err = ParseMeteostatStations(f)
	case models.ProviderMeteoFrance:
		stations, err = ParseMeteoFranceStations(f)
	default:
		return 0, fmt.Errorf("provider %s has no station table", provider)
	}
	if err != nil {
		return 0, fmt.Errorf("parse %s station table %s: %w", provider, path, err)
	}

	c.Add(provider, stations)
	return len(stations), nil
}
