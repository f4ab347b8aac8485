package geocode

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const nominatimURL = "https://nominatim.openstreetmap.org/search"

// Nominatim's usage policy allows at most one request per second.
const nominatimMaxRPS = 1.0

// nominatimPlace is one element of the Nominatim search response. Coordinates
// are returned as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimProvider geocodes via the OpenStreetMap Nominatim search API.
type NominatimProvider struct {
	client
}

// NewNominatim creates a Nominatim provider.
func NewNominatim(opts ...Option) *NominatimProvider {
	return &NominatimProvider{client: newClient(ProviderNominatim, nominatimURL, nominatimMaxRPS, opts...)}
}

// Resolve implements Provider.
func (p *NominatimProvider) Resolve(ctx context.Context, query string, timeout time.Duration) Result {
	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}

	body, fail := p.fetch(ctx, p.baseURL+"?"+params.Encode(), timeout)
	if fail != nil {
		return *fail
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return decodeFailure(p.name, err)
	}
	if len(places) == 0 {
		return NotFound()
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return decodeFailure(p.name, eris.Wrap(err, "lat"))
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return decodeFailure(p.name, eris.Wrap(err, "lon"))
	}
	return Found(lat, lon, query, places[0].DisplayName)
}
