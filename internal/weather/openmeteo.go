package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const openMeteoTimeLayout = "2006-01-02T15:04"

// OpenMeteo fetches current weather from an Open-Meteo compatible endpoint.
type OpenMeteo struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

func NewOpenMeteo(endpoint string, logger *zap.Logger) *OpenMeteo {
	return &OpenMeteo{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: time.Second * 30,
		},
		logger: logger,
	}
}

// Fetch performs a single forecast request. It never retries; a failed fetch
// is reported to the caller and left for the next scheduled trigger.
func (o *OpenMeteo) Fetch(ctx context.Context, loc LatLong, unit Unit) (*Snapshot, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(loc.Long, 'f', -1, 64))
	query.Set("current", "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m")
	query.Set("temperature_unit", string(unit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}

	o.logger.Debug("Fetching weather",
		zap.Float64("lat", loc.Lat),
		zap.Float64("long", loc.Long),
		zap.String("unit", string(unit)))

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		Current struct {
			Time        string  `json:"time"`
			Temperature float64 `json:"temperature_2m"`
			Humidity    float64 `json:"relative_humidity_2m"`
			WeatherCode int     `json:"weather_code"`
			WindSpeed   float64 `json:"wind_speed_10m"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	observedAt, err := time.Parse(openMeteoTimeLayout, payload.Current.Time)
	if err != nil {
		observedAt = time.Now().UTC()
	}

	return &Snapshot{
		Temperature: payload.Current.Temperature,
		Condition:   conditionFromCode(payload.Current.WeatherCode),
		WindSpeed:   payload.Current.WindSpeed,
		Humidity:    payload.Current.Humidity,
		ObservedAt:  observedAt,
	}, nil
}

// conditionFromCode maps WMO weather interpretation codes to the normalized
// condition set.
func conditionFromCode(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionFog
	case code >= 51 && code <= 57:
		return ConditionDrizzle
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow
	case code >= 95 && code <= 99:
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}
