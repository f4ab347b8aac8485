// Package geocode resolves free-form place names to coordinates through
// external geocoding services (Nominatim, Google, Mapbox).
package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Outcome is the tag of a Result.
type Outcome int

const (
	// OutcomeNotFound means the service answered and matched nothing.
	OutcomeNotFound Outcome = iota
	// OutcomeFound means the service returned coordinates.
	OutcomeFound
	// OutcomeError means no usable answer was obtained.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ErrorKind classifies an OutcomeError result.
type ErrorKind int

const (
	// ErrorOther covers malformed responses, auth failures and bad requests.
	ErrorOther ErrorKind = iota
	// ErrorTimeout means the call did not complete within its deadline.
	ErrorTimeout
	// ErrorNetwork means the service was unreachable or overloaded.
	ErrorNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorTimeout:
		return "timeout"
	case ErrorNetwork:
		return "network"
	default:
		return "other"
	}
}

// Result is the three-way answer of a single geocoding call: Found,
// NotFound, or Error with a kind. Providers never return a Go error.
type Result struct {
	Outcome      Outcome
	Latitude     float64
	Longitude    float64
	MatchedQuery string
	DisplayName  string
	ErrKind      ErrorKind
	Err          error
}

// Found builds a successful result.
func Found(lat, lon float64, query, displayName string) Result {
	return Result{
		Outcome:      OutcomeFound,
		Latitude:     lat,
		Longitude:    lon,
		MatchedQuery: query,
		DisplayName:  displayName,
	}
}

// NotFound builds an empty-match result.
func NotFound() Result {
	return Result{Outcome: OutcomeNotFound}
}

// Failed builds an error result of the given kind.
func Failed(kind ErrorKind, err error) Result {
	return Result{Outcome: OutcomeError, ErrKind: kind, Err: err}
}

// Transient reports whether retrying the same query may succeed.
func (r Result) Transient() bool {
	return r.Outcome == OutcomeError && (r.ErrKind == ErrorTimeout || r.ErrKind == ErrorNetwork)
}

// Label is a short metric/log label: found, not_found, timeout, network, other.
func (r Result) Label() string {
	if r.Outcome == OutcomeError {
		return r.ErrKind.String()
	}
	return r.Outcome.String()
}

// Provider is a single geocoding backend. Resolve makes one outbound call
// bounded by timeout and never retries.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, query string, timeout time.Duration) Result
}

// Provider names accepted by New.
const (
	ProviderNominatim = "nominatim"
	ProviderGoogle    = "google"
	ProviderMapbox    = "mapbox"
)

// ErrUnknownProvider is returned by New for an unrecognised provider name.
var ErrUnknownProvider = eris.New("geocode: unknown provider")

// ErrMissingCredentials is returned by New when a provider's key is not set.
var ErrMissingCredentials = eris.New("geocode: missing credentials")

// New builds the named provider.
func New(name string, opts ...Option) (Provider, error) {
	switch name {
	case ProviderNominatim:
		return NewNominatim(opts...), nil
	case ProviderGoogle:
		p := NewGoogle(opts...)
		if p.apiKey == "" {
			return nil, eris.Wrap(ErrMissingCredentials, "google api key")
		}
		return p, nil
	case ProviderMapbox:
		p := NewMapbox(opts...)
		if p.apiKey == "" {
			return nil, eris.Wrap(ErrMissingCredentials, "mapbox token")
		}
		return p, nil
	default:
		return nil, eris.Wrapf(ErrUnknownProvider, "%q", name)
	}
}
