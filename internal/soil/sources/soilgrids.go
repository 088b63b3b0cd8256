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

const defaultSoilGridsBaseURL = "https://rest.isric.org/soilgrids/v2.0"

// SoilGridsConfig configures the ISRIC SoilGrids-backed property source.
type SoilGridsConfig struct {
	BaseURL string // defaults to the public SoilGrids API
	Fetch   fetcher.Config
}

// SoilGrids implements the soil.SoilPropertySource interface for the ISRIC
// SoilGrids properties API.
type SoilGrids struct {
	name    string
	baseURL string
	client  *fetcher.Client
}

func NewSoilGrids(client *http.Client, cfg SoilGridsConfig) *SoilGrids {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSoilGridsBaseURL
	}
	return &SoilGrids{
		name:    "soilgrids",
		baseURL: cfg.BaseURL,
		client:  fetcher.New("soilgrids", client, cfg.Fetch),
	}
}

func (s *SoilGrids) Name() string {
	return s.name
}

// Properties fetches the mapped topsoil properties at the coordinate. Every
// lookup is defensive: an absent layer, an empty depth list or a non-numeric
// mean resolves to 0 for that property alone, never to a source failure.
func (s *SoilGrids) Properties(ctx context.Context, c soil.Coordinate) (soil.SoilSample, bool) {
	values := url.Values{}
	values.Set("lat", formatCoord(c.Latitude))
	values.Set("lon", formatCoord(c.Longitude))

	header := http.Header{}
	header.Set("Accept", "application/json")

	payload, ok := s.client.Fetch(ctx, s.baseURL+"/properties/query", values, header)
	if !ok {
		return soil.SoilSample{}, false
	}

	var body struct {
		Properties struct {
			Layers []struct {
				Name   string `json:"name"`
				Depths []struct {
					Values map[string]interface{} `json:"values"`
				} `json:"depths"`
			} `json:"layers"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		zap.L().Warn("soilgrids payload decode failed", zap.Error(err))
		return soil.SoilSample{}, false
	}

	// Mean of the first (shallowest) depth per layer.
	props := make(map[string]float64, len(body.Properties.Layers))
	for _, layer := range body.Properties.Layers {
		if len(layer.Depths) == 0 {
			continue
		}
		if v, isNum := layer.Depths[0].Values["mean"].(float64); isNum {
			props[layer.Name] = v
		}
	}

	return soil.SoilSample{
		ClayPct:       props["clay"],
		SandPct:       props["sand"],
		SiltPct:       props["silt"],
		PH:            props["phh2o"],
		OrganicCarbon: props["soc"],
	}, true
}
