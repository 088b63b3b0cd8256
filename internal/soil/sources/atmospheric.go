package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/croptrace/soil-analysis/internal/fetcher"
	"github.com/croptrace/soil-analysis/internal/soil"
)

const (
	defaultPowerBaseURL = "https://power.larc.nasa.gov/api"
	powerDateLayout     = "20060102"

	// Daily parameters requested from the reanalysis API. Radiation is part
	// of the standard agro set but not consumed downstream.
	powerParameters = "T2M,RH2M,PRECTOTCORR,ALLSKY_SFC_SW_DWN,ALLSKY_SFC_LW_DWN"
)

// NasaPowerConfig configures the NASA POWER-backed atmospheric source.
type NasaPowerConfig struct {
	APIKey  string // optional
	BaseURL string // defaults to the public POWER API
	Fetch   fetcher.Config
}

// NasaPower implements the soil.AtmosphericSource interface for the NASA POWER
// daily reanalysis API.
type NasaPower struct {
	name    string
	apiKey  string
	baseURL string
	client  *fetcher.Client
}

func NewNasaPower(client *http.Client, cfg NasaPowerConfig) *NasaPower {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPowerBaseURL
	}
	return &NasaPower{
		name:    "nasa-power",
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  fetcher.New("nasa-power", client, cfg.Fetch),
	}
}

func (s *NasaPower) Name() string {
	return s.name
}

// Recent fetches the trailing seven days of daily values and reduces each
// parameter series to its mean. A field is nil when the series carried no
// usable values, so the builder treats it as absent.
func (s *NasaPower) Recent(ctx context.Context, c soil.Coordinate) (soil.AtmosphericSummary, bool) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -7)

	values := url.Values{}
	values.Set("start", start.Format(powerDateLayout))
	values.Set("end", end.Format(powerDateLayout))
	values.Set("latitude", formatCoord(c.Latitude))
	values.Set("longitude", formatCoord(c.Longitude))
	values.Set("community", "AG")
	values.Set("parameters", powerParameters)
	values.Set("format", "JSON")
	if s.apiKey != "" {
		values.Set("api_key", s.apiKey)
	}

	payload, ok := s.client.Fetch(ctx, s.baseURL+"/temporal/daily/point", values, nil)
	if !ok {
		return soil.AtmosphericSummary{}, false
	}

	var body struct {
		Properties struct {
			Parameter map[string]map[string]*float64 `json:"parameter"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		zap.L().Warn("nasa power payload decode failed", zap.Error(err))
		return soil.AtmosphericSummary{}, false
	}

	return soil.AtmosphericSummary{
		TemperatureC: seriesMean(body.Properties.Parameter["T2M"]),
		HumidityPct:  seriesMean(body.Properties.Parameter["RH2M"]),
		PrecipMm:     seriesMean(body.Properties.Parameter["PRECTOTCORR"]),
	}, true
}

// seriesMean averages a daily series, skipping null entries. Returns nil when
// nothing usable remains.
func seriesMean(series map[string]*float64) *float64 {
	vals := make([]float64, 0, len(series))
	for _, v := range series {
		if v == nil {
			continue
		}
		vals = append(vals, *v)
	}
	if len(vals) == 0 {
		return nil
	}
	m := stat.Mean(vals, nil)
	return &m
}
