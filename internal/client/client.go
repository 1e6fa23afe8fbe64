package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/weather-proxy/internal/circuitbreaker"
	"github.com/kjstillabower/weather-proxy/internal/models"
	"github.com/kjstillabower/weather-proxy/internal/observability"
)

// WeatherClient fetches current weather for a city from the upstream provider.
type WeatherClient interface {
	FetchFromProvider(ctx context.Context, city string) (models.WeatherRecord, error)
}

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrUpstream covers transport failures, non-2xx statuses and provider error envelopes.
	ErrUpstream = errors.New("upstream failure")
	// ErrParse covers bodies that cannot be decoded into the expected shape.
	ErrParse = errors.New("parse upstream response")
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 1 << 20

// WeatherstackClient calls a weatherstack-compatible current-weather endpoint.
// It performs no retries; a failed call is returned to the caller.
type WeatherstackClient struct {
	apiKey  string
	apiURL  string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	now     func() time.Time
}

// NewWeatherstackClient returns a client for apiURL. timeout bounds each HTTP call; 0 leaves the http.Client default.
func NewWeatherstackClient(apiKey, apiURL string, timeout time.Duration) (*WeatherstackClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	return &WeatherstackClient{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}, nil
}

// SetCircuitBreaker wraps the HTTP round-trip in cb. Decode failures do not count against it.
func (c *WeatherstackClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type providerResponse struct {
	Success *bool `json:"success"`
	Error   *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error"`
	Location *struct {
		Name      string `json:"name"`
		Country   string `json:"country"`
		LocalTime string `json:"localtime"`
	} `json:"location"`
	Current *struct {
		Temperature *float64 `json:"temperature"`
	} `json:"current"`
}

// FetchFromProvider issues GET <base>?access_key=<key>&query=<city> and maps the body to a new,
// unsaved WeatherRecord. RequestedCityName keeps the caller's spelling; FetchedAt is now (UTC).
func (c *WeatherstackClient) FetchFromProvider(ctx context.Context, city string) (models.WeatherRecord, error) {
	var body []byte
	call := func() error {
		b, err := c.roundTrip(ctx, city)
		body = b
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, call)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			observability.UpstreamCallsTotal.WithLabelValues("circuit_open").Inc()
			err = fmt.Errorf("%w: %w", ErrUpstream, err)
		}
	} else {
		err = call()
	}
	if err != nil {
		return models.WeatherRecord{}, err
	}

	return c.decode(body, city)
}

func (c *WeatherstackClient) roundTrip(ctx context.Context, city string) ([]byte, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, city)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("error").Inc()
		observability.UpstreamDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: http request failed: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(status).Inc()
	observability.UpstreamDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %w", ErrUpstream, err)
	}
	return body, nil
}

func (c *WeatherstackClient) buildRequest(ctx context.Context, city string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := baseURL.Query()
	params.Set("access_key", c.apiKey)
	params.Set("query", city)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// decode maps a provider body into a record. A provider error envelope is an upstream failure;
// anything else that does not match the expected shape is a parse failure.
func (c *WeatherstackClient) decode(body []byte, city string) (models.WeatherRecord, error) {
	var apiResp providerResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherRecord{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if apiResp.Error != nil || (apiResp.Success != nil && !*apiResp.Success) {
		if apiResp.Error != nil {
			return models.WeatherRecord{}, fmt.Errorf("%w: provider error %d (%s): %s", ErrUpstream, apiResp.Error.Code, apiResp.Error.Type, apiResp.Error.Info)
		}
		return models.WeatherRecord{}, fmt.Errorf("%w: provider reported failure", ErrUpstream)
	}
	if apiResp.Location == nil {
		return models.WeatherRecord{}, fmt.Errorf("%w: missing location", ErrParse)
	}
	if apiResp.Current == nil || apiResp.Current.Temperature == nil {
		return models.WeatherRecord{}, fmt.Errorf("%w: missing current.temperature", ErrParse)
	}
	localTime, err := time.Parse(models.ProviderTimeLayout, apiResp.Location.LocalTime)
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("%w: location.localtime %q: %w", ErrParse, apiResp.Location.LocalTime, err)
	}

	return models.WeatherRecord{
		RequestedCityName:   city,
		ResolvedCityName:    apiResp.Location.Name,
		Country:             apiResp.Location.Country,
		Temperature:         *apiResp.Current.Temperature,
		FetchedAt:           c.now().UTC(),
		LocalTimeAtLocation: localTime,
	}, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
