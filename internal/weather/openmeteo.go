package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/windoze95/voicepack-api/internal/kvstore"
	"github.com/windoze95/voicepack-api/internal/logger"
	"github.com/windoze95/voicepack-api/internal/util"
	"go.uber.org/zap"
)

const (
	DefaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	DefaultTimeout     = 10 * time.Second
	DefaultGeocodeTTL  = 24 * time.Hour
)

// ErrNotFound is returned by Geocode when no location matches the name.
var ErrNotFound = errors.New("weather: location not found")

// Status classifies the outcome of a Lookup.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

// Location is a geocoded place.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Result is the outcome of a city weather lookup. TemperatureC is only
// meaningful when Status is StatusOK; Err is set for StatusUnavailable.
type Result struct {
	Status       Status
	City         string
	Location     Location
	TemperatureC float64
	WeatherCode  int
	Err          error
}

// Client talks to the Open-Meteo geocoding and forecast APIs. Outbound calls
// share one circuit breaker so a down upstream fails fast.
type Client struct {
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	geocodeURL  string
	forecastURL string
	store       kvstore.Store
	geocodeTTL  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithBaseURLs points the client at alternate geocoding and forecast endpoints.
func WithBaseURLs(geocodeURL, forecastURL string) Option {
	return func(c *Client) {
		c.geocodeURL = geocodeURL
		c.forecastURL = forecastURL
	}
}

// WithGeocodeCache memoises successful geocode lookups in store for ttl.
func WithGeocodeCache(store kvstore.Store, ttl time.Duration) Option {
	return func(c *Client) {
		c.store = store
		if ttl > 0 {
			c.geocodeTTL = ttl
		}
	}
}

// NewClient creates an Open-Meteo client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		geocodeURL:  DefaultGeocodeURL,
		forecastURL: DefaultForecastURL,
		geocodeTTL:  DefaultGeocodeTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "open-meteo",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Get().Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

// geocodeResponse keeps coordinates as pointers so a result without them is
// rejected instead of decoding as 0,0.
type geocodeResponse struct {
	Results []struct {
		Name      string   `json:"name"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature *float64 `json:"temperature_2m"`
		WeatherCode int      `json:"weather_code"`
	} `json:"current"`
}

// Geocode resolves a place name to coordinates using the first match.
func (c *Client) Geocode(ctx context.Context, name string) (*Location, error) {
	cacheKey := "geocode:" + strings.ToLower(strings.TrimSpace(name))
	if c.store != nil {
		if raw, err := c.store.Get(ctx, cacheKey); err == nil {
			if loc, err := util.UnmarshalString[Location](raw); err == nil {
				return &loc, nil
			}
		}
	}

	q := url.Values{}
	q.Set("name", name)
	q.Set("count", "1")

	var resp geocodeResponse
	if err := c.getJSON(ctx, c.geocodeURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}

	first := resp.Results[0]
	if first.Latitude == nil || first.Longitude == nil {
		return nil, errors.New("geocode response missing coordinates")
	}
	loc := Location{Name: first.Name, Latitude: *first.Latitude, Longitude: *first.Longitude}
	if c.store != nil {
		if raw, err := util.MarshalString(loc); err == nil {
			if err := c.store.Set(ctx, cacheKey, raw, c.geocodeTTL); err != nil {
				logger.Get().Warn("failed to cache geocode result", zap.String("city", name), zap.Error(err))
			}
		}
	}
	return &loc, nil
}

// Current returns the current temperature in Celsius and the WMO weather
// code at the given coordinates.
func (c *Client) Current(ctx context.Context, lat, lon float64) (float64, int, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current", "temperature_2m,weather_code")

	var resp forecastResponse
	if err := c.getJSON(ctx, c.forecastURL+"?"+q.Encode(), &resp); err != nil {
		return 0, 0, err
	}
	if resp.Current.Temperature == nil {
		return 0, 0, errors.New("forecast response missing temperature_2m")
	}
	return *resp.Current.Temperature, resp.Current.WeatherCode, nil
}

// Lookup geocodes city and fetches its current temperature. It never returns
// an error; failures are reported through Result.Status.
func (c *Client) Lookup(ctx context.Context, city string) Result {
	res := Result{City: city}

	loc, err := c.Geocode(ctx, city)
	if errors.Is(err, ErrNotFound) {
		res.Status = StatusNotFound
		return res
	}
	if err != nil {
		logger.Get().Warn("geocode failed", zap.String("city", city), zap.Error(err))
		res.Status = StatusUnavailable
		res.Err = err
		return res
	}
	res.Location = *loc

	temp, code, err := c.Current(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		logger.Get().Warn("forecast failed", zap.String("city", city), zap.Error(err))
		res.Status = StatusUnavailable
		res.Err = err
		return res
	}

	res.Status = StatusOK
	res.TemperatureC = temp
	res.WeatherCode = code
	return res
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("open-meteo returned status %d", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	})
	if err != nil {
		return fmt.Errorf("open-meteo request: %w", err)
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("failed to decode open-meteo response: %w", err)
	}
	return nil
}
