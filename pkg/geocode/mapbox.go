package geocode

import (
	"context"
	"encoding/json"
	"net/url"
	"time"
)

const mapboxGeocodeURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Mapbox API response types.

type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxFeature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
}

// MapboxProvider geocodes via the Mapbox Geocoding v5 API.
type MapboxProvider struct {
	client
}

// NewMapbox creates a Mapbox provider. WithAPIKey carries the access token.
func NewMapbox(opts ...Option) *MapboxProvider {
	return &MapboxProvider{client: newClient(ProviderMapbox, mapboxGeocodeURL, 0, opts...)}
}

// Resolve implements Provider.
func (p *MapboxProvider) Resolve(ctx context.Context, query string, timeout time.Duration) Result {
	params := url.Values{
		"access_token": {p.apiKey},
		"limit":        {"1"},
	}
	u := p.baseURL + "/" + url.PathEscape(query) + ".json?" + params.Encode()

	body, fail := p.fetch(ctx, u, timeout)
	if fail != nil {
		return *fail
	}

	var resp mapboxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decodeFailure(p.name, err)
	}
	if len(resp.Features) == 0 || len(resp.Features[0].Center) != 2 {
		return NotFound()
	}

	f := resp.Features[0]
	return Found(f.Center[1], f.Center[0], query, f.PlaceName)
}
