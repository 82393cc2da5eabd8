package pipeline

import (
	"strings"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

var (
	observedBase = []models.Provider{models.ProviderMeteostat, models.ProviderNOAAISD}
	modeled      = []models.Provider{models.ProviderOpenMeteo, models.ProviderNASAPower, models.ProviderERA5}
)

// Sources returns the providers queried for a site in the given country:
// every site gets Meteostat, ISD and the three gridded products; France adds
// Météo-France and the United States add GHCN-Daily.
func Sources(country string) []models.Provider {
	out := append([]models.Provider(nil), observedBase...)
	switch normalizeCountry(country) {
	case "FR":
		out = append(out, models.ProviderMeteoFrance)
	case "US":
		out = append(out, models.ProviderGHCND)
	}
	return append(out, modeled...)
}

func normalizeCountry(country string) string {
	switch strings.ToLower(strings.TrimSpace(country)) {
	case "fr", "fra", "france":
		return "FR"
	case "us", "usa", "united states", "united states of america":
		return "US"
	default:
		return strings.ToUpper(strings.TrimSpace(country))
	}
}
