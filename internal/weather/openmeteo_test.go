package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

const forecastFixture = `{
	"current": {
		"time": "2026-03-14T09:30",
		"temperature_2m": 12.4,
		"relative_humidity_2m": 81,
		"weather_code": 61,
		"wind_speed_10m": 18.7
	}
}`

func TestFetchDecodesCurrentConditions(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"latitude":         r.URL.Query().Get("latitude"),
			"longitude":        r.URL.Query().Get("longitude"),
			"temperature_unit": r.URL.Query().Get("temperature_unit"),
			"current":          r.URL.Query().Get("current"),
		}
		w.Write([]byte(forecastFixture))
	}))
	defer srv.Close()

	svc := NewOpenMeteo(srv.URL, zap.NewNop())
	snap, err := svc.Fetch(context.Background(), LatLong{Lat: 51.5, Long: -0.12}, UnitCelsius)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	if gotQuery["latitude"] != "51.5" {
		t.Errorf("latitude query = %q, want %q", gotQuery["latitude"], "51.5")
	}
	if gotQuery["longitude"] != "-0.12" {
		t.Errorf("longitude query = %q, want %q", gotQuery["longitude"], "-0.12")
	}
	if gotQuery["temperature_unit"] != "celsius" {
		t.Errorf("temperature_unit query = %q, want %q", gotQuery["temperature_unit"], "celsius")
	}
	if gotQuery["current"] == "" {
		t.Error("current query parameter missing")
	}

	if snap.Temperature != 12.4 {
		t.Errorf("Temperature = %v, want 12.4", snap.Temperature)
	}
	if snap.Condition != ConditionRain {
		t.Errorf("Condition = %q, want %q", snap.Condition, ConditionRain)
	}
	if snap.Humidity != 81 {
		t.Errorf("Humidity = %v, want 81", snap.Humidity)
	}
	if snap.WindSpeed != 18.7 {
		t.Errorf("WindSpeed = %v, want 18.7", snap.WindSpeed)
	}

	want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	if !snap.ObservedAt.Equal(want) {
		t.Errorf("ObservedAt = %v, want %v", snap.ObservedAt, want)
	}
}

func TestFetchSendsRequestedUnit(t *testing.T) {
	var gotUnit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUnit = r.URL.Query().Get("temperature_unit")
		w.Write([]byte(forecastFixture))
	}))
	defer srv.Close()

	svc := NewOpenMeteo(srv.URL, zap.NewNop())
	if _, err := svc.Fetch(context.Background(), LatLong{}, UnitFahrenheit); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if gotUnit != "fahrenheit" {
		t.Errorf("temperature_unit query = %q, want %q", gotUnit, "fahrenheit")
	}
}

func TestFetchNon200Fails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewOpenMeteo(srv.URL, zap.NewNop())
	if _, err := svc.Fetch(context.Background(), LatLong{}, UnitCelsius); err == nil {
		t.Fatal("Fetch() succeeded on HTTP 500, want error")
	}
}

func TestFetchMalformedBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	svc := NewOpenMeteo(srv.URL, zap.NewNop())
	if _, err := svc.Fetch(context.Background(), LatLong{}, UnitCelsius); err == nil {
		t.Fatal("Fetch() succeeded on malformed body, want error")
	}
}

func TestConditionFromCode(t *testing.T) {
	tests := []struct {
		code int
		want Condition
	}{
		{0, ConditionClear},
		{2, ConditionCloudy},
		{45, ConditionFog},
		{53, ConditionDrizzle},
		{63, ConditionRain},
		{81, ConditionRain},
		{73, ConditionSnow},
		{85, ConditionSnow},
		{95, ConditionStorm},
		{42, ConditionUnknown},
	}

	for _, tt := range tests {
		if got := conditionFromCode(tt.code); got != tt.want {
			t.Errorf("conditionFromCode(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
