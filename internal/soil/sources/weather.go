package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/croptrace/soil-analysis/internal/fetcher"
	"github.com/croptrace/soil-analysis/internal/soil"
)

const defaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherConfig configures the OpenWeatherMap-backed weather source.
type OpenWeatherConfig struct {
	APIKey  string
	BaseURL string // defaults to the public OpenWeatherMap API
	Fetch   fetcher.Config
}

// OpenWeather implements the soil.WeatherSource interface for OpenWeatherMap.
type OpenWeather struct {
	name    string
	apiKey  string
	baseURL string
	client  *fetcher.Client
}

func NewOpenWeather(client *http.Client, cfg OpenWeatherConfig) *OpenWeather {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenWeatherBaseURL
	}
	return &OpenWeather{
		name:    "openweathermap",
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  fetcher.New("openweathermap", client, cfg.Fetch),
	}
}

func (s *OpenWeather) Name() string {
	return s.name
}

// Current fetches the live ambient reading at the coordinate. Pointer fields
// stay nil when the payload omits them, so the builder can fall back per field.
func (s *OpenWeather) Current(ctx context.Context, c soil.Coordinate) (soil.WeatherObservation, bool) {
	if s.apiKey == "" {
		zap.L().Warn("openweathermap api key is not configured")
		return soil.WeatherObservation{}, false
	}

	values := url.Values{}
	values.Set("lat", formatCoord(c.Latitude))
	values.Set("lon", formatCoord(c.Longitude))
	values.Set("appid", s.apiKey)
	values.Set("units", "metric")

	payload, ok := s.client.Fetch(ctx, s.baseURL+"/weather", values, nil)
	if !ok {
		return soil.WeatherObservation{}, false
	}

	var body struct {
		Main struct {
			Temp     *float64 `json:"temp"`
			Humidity *float64 `json:"humidity"`
		} `json:"main"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		zap.L().Warn("openweathermap payload decode failed", zap.Error(err))
		return soil.WeatherObservation{}, false
	}

	return soil.WeatherObservation{
		TemperatureC: body.Main.Temp,
		HumidityPct:  body.Main.Humidity,
	}, true
}
