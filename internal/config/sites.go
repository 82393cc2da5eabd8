package config

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

var validate = validator.New()

var siteColumns = []string{"reference", "name", "country", "latitude", "longitude"}

// LoadSites reads a site list file. See ParseSites.
func LoadSites(path string) ([]models.Site, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open site list: %w", err)
	}
	defer f.Close()
	return ParseSites(f)
}

// ParseSites reads a ';' or ',' delimited site list with a header naming
// reference, name, country, latitude and longitude in any order. Decimal
// commas are accepted when the delimiter is ';'. Every site is validated;
// the first invalid row fails the whole list.
func ParseSites(r io.Reader) ([]models.Site, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read site list: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("site list is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range siteColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("site list missing column %q", name)
		}
	}

	var sites []models.Site
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(name string) string {
			i := cols[name]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		lat, err := parseCoordinate(get("latitude"))
		if err != nil {
			return nil, fmt.Errorf("line %d: latitude: %w", line, err)
		}
		lon, err := parseCoordinate(get("longitude"))
		if err != nil {
			return nil, fmt.Errorf("line %d: longitude: %w", line, err)
		}

		site := models.Site{
			Reference: get("reference"),
			Name:      get("name"),
			Country:   get("country"),
			Latitude:  lat,
			Longitude: lon,
		}
		if err := validate.Struct(site); err != nil {
			return nil, fmt.Errorf("line %d: invalid site: %w", line, err)
		}
		if seen[site.Key()] {
			return nil, fmt.Errorf("line %d: duplicate site %s", line, site.Key())
		}
		seen[site.Key()] = true
		sites = append(sites, site)
	}
	return sites, nil
}

func sniffDelimiter(data []byte) rune {
	first, _, _ := bufio.NewReader(bytes.NewReader(data)).ReadLine()
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

func parseCoordinate(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}
