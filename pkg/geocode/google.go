package geocode

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// GoogleProvider geocodes via the Google Geocoding API.
type GoogleProvider struct {
	client
}

// NewGoogle creates a Google provider. WithAPIKey is required.
func NewGoogle(opts ...Option) *GoogleProvider {
	return &GoogleProvider{client: newClient(ProviderGoogle, googleGeocodeURL, 0, opts...)}
}

// Resolve implements Provider.
func (p *GoogleProvider) Resolve(ctx context.Context, query string, timeout time.Duration) Result {
	params := url.Values{
		"address": {query},
		"key":     {p.apiKey},
	}

	body, fail := p.fetch(ctx, p.baseURL+"?"+params.Encode(), timeout)
	if fail != nil {
		return *fail
	}

	var resp googleGeocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decodeFailure(p.name, err)
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return NotFound()
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return Failed(ErrorNetwork, eris.Errorf("geocode: google status %s: %s", resp.Status, resp.ErrorMessage))
	default:
		return Failed(ErrorOther, eris.Errorf("geocode: google status %s: %s", resp.Status, resp.ErrorMessage))
	}

	if len(resp.Results) == 0 {
		return NotFound()
	}
	r := resp.Results[0]
	return Found(r.Geometry.Location.Lat, r.Geometry.Location.Lng, query, r.FormattedAddress)
}
