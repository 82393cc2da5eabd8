package normalize

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/AdrienSalicis/WindDatas/internal/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

// dlyLine builds one GHCN-Daily line; days not in values are missing.
func dlyLine(station string, year, month int, element string, values map[int]int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-11s%04d%02d%-4s", station, year, month, element)
	for day := 1; day <= 31; day++ {
		v, ok := values[day]
		if !ok {
			v = -9999
		}
		fmt.Fprintf(&b, "%5d   ", v)
	}
	return b.String()
}

func TestNormalize_NoValidRows(t *testing.T) {
	tests := []struct {
		provider models.Provider
		payload  string
	}{
		{models.ProviderNOAAISD, ""},
		{models.ProviderNOAAISD, `"STATION","DATE","WND"` + "\n"},
		{models.ProviderNOAAISD, `"STATION","DATE","TMP"` + "\n" + `"1","2024-01-01T00:00:00","+0100,1"` + "\n"},
		{models.ProviderGHCND, dlyLine("USW00023183", 2024, 1, "TMAX", map[int]int{1: 100})},
		{models.ProviderMeteostat, `{"meta":{},"data":[]}`},
		{models.ProviderMeteostat, `{"meta":{}}`},
		{models.ProviderMeteoFrance, "POSTE;DATE;RR\n84087001;20240101;0\n"},
		{models.ProviderOpenMeteo, `{"latitude":44.1,"longitude":4.7}`},
		{models.ProviderNASAPower, `{"properties":{"parameter":{"T2M":{"2024010100":5}}}}`},
		{models.ProviderERA5, "time,t2m\n2024-01-01 00:00:00,280\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			got, err := Normalize(tt.provider, []byte(tt.payload))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("len = %d, want 0", len(got))
			}
		})
	}
}

func TestNormalize_UnknownProvider(t *testing.T) {
	_, err := Normalize("wunderground", []byte("x"))
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}
}

func TestNormalize_BrokenJSON(t *testing.T) {
	_, err := Normalize(models.ProviderMeteostat, []byte("<html>rate limited</html>"))
	if err == nil {
		t.Fatal("expected error for non-JSON payload")
	}
}

func TestISD(t *testing.T) {
	payload := `"STATION","DATE","SOURCE","WND","GUST"
"07579099999","2024-01-01T00:00:00","4","160,1,N,0046,1","0120"
"07579099999","2024-01-01T01:00:00","4","999,9,C,0000,1",""
"07579099999","2024-01-01T02:00:00","4","200,1,N,9999,9","1600"
"07579099999","not-a-date","4","200,1,N,0010,1",""
"07579099999","2024-01-01T03:00:00","4","garbage",""
"07579099999","2024-01-02T00:00:00","4","350,1,N,1500,1",""
`
	table, err := Collect(models.ProviderNOAAISD, []byte(payload))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if table.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", table.Dropped)
	}
	if table.GustDerived {
		t.Error("GustDerived = true, want false with GUST column")
	}
	if len(table.Readings) != 4 {
		t.Fatalf("len(Readings) = %d, want 4", len(table.Readings))
	}

	first := table.Readings[0]
	if !approx(first.Speed.Float64, 4.6) || !approx(first.Gust.Float64, 12) || first.Direction.Float64 != 160 {
		t.Errorf("first reading = %+v", first)
	}
	calm := table.Readings[1]
	if calm.Direction.Valid {
		t.Errorf("direction 999 = %v, want null", calm.Direction)
	}
	if !calm.Speed.Valid || calm.Speed.Float64 != 0 {
		t.Errorf("calm speed = %v, want 0", calm.Speed)
	}
	missing := table.Readings[2]
	if missing.Speed.Valid {
		t.Errorf("speed 9999 = %v, want null", missing.Speed)
	}
	if missing.Gust.Valid {
		t.Errorf("gust 160 m/s = %v, want null", missing.Gust)
	}
	if table.Readings[3].Speed.Valid {
		t.Errorf("speed 150 m/s = %v, want null", table.Readings[3].Speed)
	}
}

func TestISD_DerivedGustAndDRCT(t *testing.T) {
	payload := `"DATE","WND","DRCT"
"2024-06-01T00:00:00","160,1,N,0030,1","170"
"2024-06-01T01:00:00","160,1,N,0080,1",""
"2024-06-01T02:00:00","160,1,N,0050,1","999"
`
	table, err := Collect(models.ProviderNOAAISD, []byte(payload))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !table.GustDerived {
		t.Error("GustDerived = false, want true without GUST/OC1")
	}
	if table.Readings[0].Direction.Float64 != 170 {
		t.Errorf("DRCT direction = %v, want 170", table.Readings[0].Direction)
	}
	if table.Readings[1].Direction.Float64 != 160 {
		t.Errorf("fallback direction = %v, want 160", table.Readings[1].Direction)
	}
	if table.Readings[2].Direction.Valid {
		t.Errorf("DRCT 999 = %v, want null", table.Readings[2].Direction)
	}

	daily, err := Normalize(models.ProviderNOAAISD, []byte(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(daily) != 1 || !approx(daily[0].WindspeedGust.Float64, 8) {
		t.Errorf("daily = %+v, want derived gust 8", daily)
	}
}

func TestISD_OC1Gust(t *testing.T) {
	payload := `"DATE","WND","OC1"
"2024-06-01T00:00:00","160,1,N,0030,1","0085,1"
"2024-06-01T01:00:00","160,1,N,0040,1",""
`
	table, err := Collect(models.ProviderNOAAISD, []byte(payload))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if table.GustDerived {
		t.Error("GustDerived = true, want false with OC1")
	}
	if !approx(table.Readings[0].Gust.Float64, 8.5) {
		t.Errorf("gust = %v, want 8.5", table.Readings[0].Gust)
	}
}

func TestGHCND_KnotsConversion(t *testing.T) {
	payload := strings.Join([]string{
		dlyLine("FR000007650", 2024, 2, "WSF2", map[int]int{1: 10, 2: 20, 30: 5}),
		dlyLine("FR000007650", 2024, 2, "WSFG", map[int]int{1: 30}),
		dlyLine("FR000007650", 2024, 2, "WDF2", map[int]int{1: 230, 2: 360}),
		dlyLine("FR000007650", 2024, 2, "PRCP", map[int]int{1: 12}),
	}, "\n")

	got, err := Normalize(models.ProviderGHCND, []byte(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (Feb 30 does not exist)", len(got))
	}
	if !approx(got[0].WindspeedMean.Float64, 5.14444) {
		t.Errorf("speed = %v, want 5.14444", got[0].WindspeedMean.Float64)
	}
	if !approx(got[0].WindspeedGust.Float64, 30*KnotsToMS) {
		t.Errorf("gust = %v, want %v", got[0].WindspeedGust.Float64, 30*KnotsToMS)
	}
	if got[0].WindDirection.Float64 != 230 {
		t.Errorf("direction = %v, want 230", got[0].WindDirection.Float64)
	}
	if !got[1].WindDirection.Valid || got[1].WindDirection.Float64 != 0 {
		t.Errorf("direction 360 = %v, want 0", got[1].WindDirection)
	}
	if got[1].WindspeedGust.Valid {
		t.Errorf("day 2 gust = %v, want null (native gust element present)", got[1].WindspeedGust)
	}
}

func TestMeteostat(t *testing.T) {
	payload := `{"meta":{"generated":"2024-02-01"},"data":[
		{"date":"2024-01-01","wdir":180,"wspd":36,"wpgt":72},
		{"date":"2024-01-02","wdir":null,"wspd":null,"wpgt":null},
		{"date":"01/03/2024","wdir":10,"wspd":3.6,"wpgt":null}
	]}`
	table, err := Collect(models.ProviderMeteostat, []byte(payload))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if table.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", table.Dropped)
	}
	if len(table.Readings) != 2 {
		t.Fatalf("len(Readings) = %d, want 2", len(table.Readings))
	}
	r := table.Readings[0]
	if !approx(r.Speed.Float64, 10) || !approx(r.Gust.Float64, 20) || r.Direction.Float64 != 180 {
		t.Errorf("reading = %+v, want 10 m/s, 20 m/s, 180", r)
	}
	if table.Readings[1].Speed.Valid || table.Readings[1].Direction.Valid {
		t.Errorf("null fields = %+v, want all null", table.Readings[1])
	}
}

func TestMeteoFrance(t *testing.T) {
	payload := "POSTE;DATE;RR;FFM;FXI;DXI\n" +
		"84087001;20240101;0,2;3,5;12,1;340\n" +
		"84087001;2024XX02;0;1;2;3\n" +
		"84087001;20240103;;;;\n" +
		"84087001;20240104;0;abc;2;3\n"

	table, err := Collect(models.ProviderMeteoFrance, []byte(payload))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if table.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", table.Dropped)
	}
	if len(table.Readings) != 2 {
		t.Fatalf("len(Readings) = %d, want 2", len(table.Readings))
	}
	r := table.Readings[0]
	if !approx(r.Speed.Float64, 3.5) || !approx(r.Gust.Float64, 12.1) || r.Direction.Float64 != 340 {
		t.Errorf("reading = %+v", r)
	}
	if table.Readings[1].Speed.Valid {
		t.Errorf("empty cell = %v, want null", table.Readings[1].Speed)
	}
}

func TestOpenMeteo(t *testing.T) {
	payload := `{
		"daily_units":{"time":"iso8601","windspeed_10m_mean":"km/h","windspeed_10m_max":"km/h"},
		"daily":{"time":["2024-01-01","2024-01-02"],"windspeed_10m_mean":[18,null],"windspeed_10m_max":[36,7.2]},
		"hourly":{"time":["2024-01-01T00:00","2024-01-01T01:00","2024-01-01T02:00","2024-01-02T00:00"],
		          "winddirection_10m":[90,90,null,45]}
	}`
	got, err := Normalize(models.ProviderOpenMeteo, []byte(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !approx(got[0].WindspeedMean.Float64, 5) || !approx(got[0].WindspeedGust.Float64, 10) {
		t.Errorf("day 1 = %+v, want mean 5 gust 10", got[0])
	}
	if got[0].WindDirection.Float64 != 90 {
		t.Errorf("day 1 direction = %v, want 90", got[0].WindDirection)
	}
	if got[1].WindspeedMean.Valid {
		t.Errorf("day 2 mean = %v, want null", got[1].WindspeedMean)
	}
	if !approx(got[1].WindspeedGust.Float64, 2) || got[1].WindDirection.Float64 != 45 {
		t.Errorf("day 2 = %+v", got[1])
	}
}

func TestOpenMeteo_MetricUnits(t *testing.T) {
	payload := `{
		"daily_units":{"wind_speed_10m_mean":"m/s","wind_gusts_10m_max":"m/s"},
		"daily":{"time":["2024-01-01"],"wind_speed_10m_mean":[4.2],"wind_gusts_10m_max":[11.5]}
	}`
	got, err := Normalize(models.ProviderOpenMeteo, []byte(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !approx(got[0].WindspeedMean.Float64, 4.2) || !approx(got[0].WindspeedGust.Float64, 11.5) {
		t.Errorf("row = %+v, want 4.2 / 11.5", got[0])
	}
}

func TestNASAPower(t *testing.T) {
	payload := `{
		"header":{"fill_value":-999},
		"properties":{"parameter":{
			"WS10M":{"2024010100":3,"2024010101":5,"2024010200":-999},
			"WD10M":{"2024010100":200,"2024010101":-999,"2024010200":10}
		}}
	}`
	table, err := Collect(models.ProviderNASAPower, []byte(payload))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !table.GustDerived {
		t.Error("GustDerived = false, want true without GWS10M")
	}

	got, err := Normalize(models.ProviderNASAPower, []byte(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].WindspeedMean.Float64 != 5 || got[0].WindspeedGust.Float64 != 5 || got[0].WindDirection.Float64 != 200 {
		t.Errorf("day 1 = %+v", got[0])
	}
	if got[1].WindspeedMean.Valid || got[1].WindspeedGust.Valid {
		t.Errorf("day 2 speed/gust = %v/%v, want null", got[1].WindspeedMean, got[1].WindspeedGust)
	}
}

func TestNASAPower_GustBefore2001(t *testing.T) {
	payload := `{"properties":{"parameter":{
		"WS10M":{"2000123123":4},
		"GWS10M":{"2000123123":-999}
	}}}`
	got, err := Normalize(models.ProviderNASAPower, []byte(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got[0].WindspeedGust.Valid {
		t.Errorf("gust = %v, want null", got[0].WindspeedGust)
	}
}

func TestERA5(t *testing.T) {
	payload := "time,latitude,longitude,u10,v10\n" +
		"2024-01-01 00:00:00,44.1,4.7,3,4\n" +
		"2024-01-01 01:00:00,44.1,4.7,0,-1\n" +
		"2024-01-01 02:00:00,44.1,4.7,n/a,1\n"

	table, err := Collect(models.ProviderERA5, []byte(payload))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if table.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", table.Dropped)
	}
	if !approx(table.Readings[0].Direction.Float64, 216.8699) {
		t.Errorf("direction = %v, want 216.87", table.Readings[0].Direction)
	}
	if table.Readings[1].Direction.Float64 != 0 {
		t.Errorf("northerly direction = %v, want 0", table.Readings[1].Direction)
	}

	got, err := Normalize(models.ProviderERA5, []byte(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !approx(got[0].WindspeedMean.Float64, 5) || !approx(got[0].WindspeedGust.Float64, 5) {
		t.Errorf("daily = %+v, want speed 5 and derived gust 5", got[0])
	}
}

func TestCollect_MultiplePayloads(t *testing.T) {
	first := `{"data":[{"date":"2024-01-01","wspd":36,"wpgt":null,"wdir":null}]}`
	second := `{"data":[{"date":"2024-01-01","wspd":72,"wpgt":null,"wdir":null},{"date":"2024-01-02","wspd":3.6}]}`

	got, err := Normalize(models.ProviderMeteostat, []byte(first), nil, []byte(second))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !approx(got[0].WindspeedMean.Float64, 20) {
		t.Errorf("merged day = %v, want 20", got[0].WindspeedMean.Float64)
	}
}

func TestGHCND_AverageSpeedAndFastestGustDirection(t *testing.T) {
	payload := strings.Join([]string{
		dlyLine("USW00023183", 2024, 3, "AWND", map[int]int{1: 10, 2: 12}),
		dlyLine("USW00023183", 2024, 3, "WSF2", map[int]int{2: 20}),
		dlyLine("USW00023183", 2024, 3, "WDFG", map[int]int{1: 90, 2: 100}),
		dlyLine("USW00023183", 2024, 3, "WDF2", map[int]int{2: 270}),
	}, "\n")

	got, err := Normalize(models.ProviderGHCND, []byte(payload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !approx(got[0].WindspeedMean.Float64, 10*KnotsToMS) || got[0].WindDirection.Float64 != 90 {
		t.Errorf("day 1 = %+v, want AWND speed and WDFG direction", got[0])
	}
	if !approx(got[1].WindspeedMean.Float64, 20*KnotsToMS) || got[1].WindDirection.Float64 != 270 {
		t.Errorf("day 2 = %+v, want WSF2 speed and WDF2 direction", got[1])
	}
}

func TestCollect_SkipsUndecodablePayload(t *testing.T) {
	good := `{"properties":{"parameter":{
		"WS10M":{"2021010100":3,"2021010200":4},
		"GWS10M":{"2021010100":6,"2021010200":7}
	}}}`

	table, err := Collect(models.ProviderNASAPower, []byte(good), []byte("<html>maintenance</html>"))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if table.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", table.Rejected)
	}

	got, err := Normalize(models.ProviderNASAPower, []byte("<html>maintenance</html>"), []byte(good))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}

	if _, err := Collect(models.ProviderNASAPower, []byte("<html>a</html>"), []byte("<html>b</html>")); err == nil {
		t.Error("expected error when every payload is undecodable")
	}
}

func TestCollect_GustDerivedPerPayload(t *testing.T) {
	before2001 := `{"properties":{"parameter":{"WS10M":{"2000123100":4}}}}`
	after2001 := `{"properties":{"parameter":{
		"WS10M":{"2001010100":5},
		"GWS10M":{"2001010100":-999}
	}}}`

	table, err := Collect(models.ProviderNASAPower, []byte(before2001), []byte(after2001))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if table.GustDerived {
		t.Error("GustDerived = true, want false when one payload has native gust")
	}

	got, err := Normalize(models.ProviderNASAPower, []byte(before2001), []byte(after2001))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].WindspeedGust.Valid || got[0].WindspeedGust.Float64 != 4 {
		t.Errorf("2000-12-31 gust = %v, want derived 4", got[0].WindspeedGust)
	}
	if got[1].WindspeedGust.Valid {
		t.Errorf("2001-01-01 gust = %v, want null (native gust is fill)", got[1].WindspeedGust)
	}
}
