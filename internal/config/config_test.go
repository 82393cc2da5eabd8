package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

func TestParseSites(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []models.Site
	}{
		{
			name:  "semicolon with decimal commas",
			input: "reference;name;country;latitude;longitude\nS01;Piolenc;FR;44,18;4,76\n",
			want:  []models.Site{{Reference: "S01", Name: "Piolenc", Country: "FR", Latitude: 44.18, Longitude: 4.76}},
		},
		{
			name:  "comma with reordered columns",
			input: "Name,Reference,Latitude,Longitude,Country\nDenver,S02,39.74,-104.99,US\nLyon,S03,45.76,4.84,FR\n",
			want: []models.Site{
				{Reference: "S02", Name: "Denver", Country: "US", Latitude: 39.74, Longitude: -104.99},
				{Reference: "S03", Name: "Lyon", Country: "FR", Latitude: 45.76, Longitude: 4.84},
			},
		},
		{
			name:  "byte order mark",
			input: "\ufeffreference,name,country,latitude,longitude\nS01,A,FR,1,2\n",
			want:  []models.Site{{Reference: "S01", Name: "A", Country: "FR", Latitude: 1, Longitude: 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSites(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ParseSites: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("site %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseSites_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing column", "reference,name,country,latitude\nS01,A,FR,1\n"},
		{"bad latitude", "reference,name,country,latitude,longitude\nS01,A,FR,north,2\n"},
		{"latitude out of range", "reference,name,country,latitude,longitude\nS01,A,FR,95,2\n"},
		{"missing name", "reference,name,country,latitude,longitude\nS01,,FR,1,2\n"},
		{"duplicate", "reference,name,country,latitude,longitude\nS01,A,FR,1,2\nS01,A,FR,3,4\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSites(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadSites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.csv")
	if err := os.WriteFile(path, []byte("reference;name;country;latitude;longitude\nS01;Piolenc;FR;44.18;4.76\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sites, err := LoadSites(path)
	if err != nil {
		t.Fatalf("LoadSites: %v", err)
	}
	if len(sites) != 1 || sites[0].Key() != "S01_Piolenc" {
		t.Errorf("sites = %+v, want S01_Piolenc", sites)
	}

	if _, err := LoadSites(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWindow_Parse(t *testing.T) {
	start, end, err := Window{Start: "2020-01-01", End: "2020-12-31"}.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !start.Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("window = %v..%v", start, end)
	}

	for _, w := range []Window{
		{Start: "2020-02-01", End: "2020-01-01"},
		{Start: "01/01/2020", End: "2020-01-02"},
		{Start: "2020-01-01", End: ""},
	} {
		if _, _, err := w.Parse(); err == nil {
			t.Errorf("Parse(%+v): expected error", w)
		}
	}
}

func TestProviders_Ingest(t *testing.T) {
	p := Providers{MeteostatKey: "k", MeteoFranceToken: "tok", ERA5Dir: "/era5", RequestsPerSecond: 3, MeteoFrancePollMax: 7}
	cfg := p.Ingest()
	if cfg.MeteostatKey != "k" || cfg.MeteoFranceToken != "tok" || cfg.ERA5Dir != "/era5" ||
		cfg.RequestsPerSecond != 3 || cfg.MeteoFrancePollMax != 7 {
		t.Errorf("Ingest() = %+v", cfg)
	}
}

func TestCatalogs_LoadUnconfigured(t *testing.T) {
	cat, err := Catalogs{}.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Providers()) != 0 {
		t.Errorf("Providers = %v, want none", cat.Providers())
	}

	if _, err := (Catalogs{ISDHistory: filepath.Join(t.TempDir(), "missing.csv")}).Load(); err == nil {
		t.Error("expected error for missing table")
	}
}
