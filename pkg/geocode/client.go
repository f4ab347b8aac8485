package geocode

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/resort-geocoder/internal/resilience"
)

// DefaultUserAgent identifies this tool to public geocoding services.
const DefaultUserAgent = "interval-resort-viewer"

// Option configures a provider.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets a hard requests-per-second ceiling for the backend.
// A non-positive rps removes the ceiling.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		c.limiter = newRateLimiter(rps)
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithBaseURL overrides the backend endpoint.
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithAPIKey sets the credential for backends that require one.
func WithAPIKey(key string) Option {
	return func(c *client) {
		c.apiKey = key
	}
}

// client is the HTTP plumbing shared by every provider.
type client struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	baseURL    string
	apiKey     string
}

func newClient(name, baseURL string, rps float64, opts ...Option) client {
	c := client{
		name:       name,
		httpClient: &http.Client{},
		limiter:    newRateLimiter(rps),
		userAgent:  DefaultUserAgent,
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func newRateLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
}

// Name implements Provider.
func (c *client) Name() string { return c.name }

// fetch performs a GET bounded by timeout and returns the body of a 200
// response. Any other outcome is returned as a classified failure.
func (c *client) fetch(ctx context.Context, reqURL string, timeout time.Duration) ([]byte, *Result) {
	if err := c.limiter.Wait(ctx); err != nil {
		r := Failed(ErrorOther, eris.Wrapf(err, "geocode: %s rate limit", c.name))
		return nil, &r
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		r := Failed(ErrorOther, eris.Wrapf(err, "geocode: %s build request", c.name))
		return nil, &r
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		r := classifyTransport(ctx, err, "geocode: %s request", c.name)
		return nil, &r
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		r := classifyStatus(resp.StatusCode, eris.Errorf("geocode: %s returned status %d", c.name, resp.StatusCode))
		return nil, &r
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r := classifyTransport(ctx, err, "geocode: %s read body", c.name)
		return nil, &r
	}
	return body, nil
}

// classifyTransport maps a failed round trip to a Result. Cancellation of
// the caller's context is not a provider fault and is reported as Other.
func classifyTransport(parent context.Context, err error, format string, args ...any) Result {
	wrapped := eris.Wrapf(err, format, args...)
	if parent.Err() != nil {
		return Failed(ErrorOther, wrapped)
	}
	if errors.Is(err, context.DeadlineExceeded) || resilience.IsTimeout(err) {
		return Failed(ErrorTimeout, wrapped)
	}
	return Failed(ErrorNetwork, wrapped)
}

// classifyStatus maps a non-200 HTTP status to a Result.
func classifyStatus(status int, err error) Result {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return Failed(ErrorTimeout, err)
	case resilience.IsTransientHTTPStatus(status), status >= 500:
		return Failed(ErrorNetwork, err)
	default:
		return Failed(ErrorOther, err)
	}
}

func decodeFailure(name string, err error) Result {
	return Failed(ErrorOther, eris.Wrapf(err, "geocode: %s parse response", name))
}
