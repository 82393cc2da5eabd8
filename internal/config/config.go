package config

import (
	"fmt"
	"time"

	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/AdrienSalicis/WindDatas/internal/catalog"
	"github.com/AdrienSalicis/WindDatas/internal/ingest"
	"github.com/AdrienSalicis/WindDatas/internal/models"
)

const dateLayout = "2006-01-02"

// Globals are shared by every command.
type Globals struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file.'"`
	DB      string                   `name:"db" env:"WINDDATAS_DB" default:"data/winddatas.db" help:"Path to SQLite database."`
}

// Providers configures upstream access. Credentials are only read from flags
// or the environment.
type Providers struct {
	MeteostatKey       string        `name:"meteostat-key" env:"METEOSTAT_API_KEY" help:"RapidAPI key for Meteostat."`
	MeteoFranceToken   string        `name:"meteofrance-token" env:"METEOFRANCE_API_KEY" help:"Bearer token for the Météo-France DPClim API."`
	ERA5Dir            string        `name:"era5-dir" env:"ERA5_DIR" type:"path" help:"Directory of ERA5 CSV extracts named <site key>.csv."`
	RequestsPerSecond  float64       `name:"rps" env:"WINDDATAS_RPS" default:"2" help:"Per-provider request rate limit."`
	MeteoFrancePollMax int           `name:"meteofrance-polls" default:"60" help:"Polls before a Météo-France order is abandoned."`
	CacheDir           string        `name:"cache-dir" env:"WINDDATAS_CACHE_DIR" default:"data/cache" type:"path" help:"Raw payload cache directory; empty disables caching."`
	CacheMaxAge        time.Duration `name:"cache-max-age" default:"0s" help:"Cached payloads older than this are refetched; 0 keeps them forever."`
}

func (p Providers) Ingest() ingest.Config {
	return ingest.Config{
		MeteostatKey:       p.MeteostatKey,
		MeteoFranceToken:   p.MeteoFranceToken,
		ERA5Dir:            p.ERA5Dir,
		RequestsPerSecond:  p.RequestsPerSecond,
		MeteoFrancePollMax: p.MeteoFrancePollMax,
	}
}

// Catalogs points at the provider station tables.
type Catalogs struct {
	ISDHistory          string `name:"isd-history" env:"ISD_HISTORY" type:"path" help:"NOAA isd-history.csv."`
	GHCNDStations       string `name:"ghcnd-stations" env:"GHCND_STATIONS" type:"path" help:"GHCN-Daily ghcnd-stations.txt."`
	MeteostatStations   string `name:"meteostat-stations" env:"METEOSTAT_STATIONS" type:"path" help:"Meteostat stations JSON."`
	MeteoFranceStations string `name:"meteofrance-stations" env:"METEOFRANCE_STATIONS" type:"path" help:"Météo-France station list JSON."`
}

// Load reads every configured table. A table that fails to load aborts the
// run; an unconfigured one only disables its provider.
func (c Catalogs) Load() (*catalog.Catalog, error) {
	cat := catalog.New()
	for _, t := range []struct {
		provider models.Provider
		path     string
	}{
		{models.ProviderNOAAISD, c.ISDHistory},
		{models.ProviderGHCND, c.GHCNDStations},
		{models.ProviderMeteostat, c.MeteostatStations},
		{models.ProviderMeteoFrance, c.MeteoFranceStations},
	} {
		if t.path == "" {
			continue
		}
		if _, err := cat.LoadFile(t.provider, t.path); err != nil {
			return nil, fmt.Errorf("load %s stations: %w", t.provider, err)
		}
	}
	return cat, nil
}

// Window is the inclusive date range to process.
type Window struct {
	Start string `name:"start" required:"" help:"First day, YYYY-MM-DD."`
	End   string `name:"end" required:"" help:"Last day, YYYY-MM-DD."`
}

func (w Window) Parse() (start, end time.Time, err error) {
	start, err = time.Parse(dateLayout, w.Start)
	if err != nil {
		return start, end, fmt.Errorf("parse start date: %w", err)
	}
	end, err = time.Parse(dateLayout, w.End)
	if err != nil {
		return start, end, fmt.Errorf("parse end date: %w", err)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end %s is before start %s", w.End, w.Start)
	}
	return start, end, nil
}
