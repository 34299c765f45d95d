// Package sunset fetches today's sunset time from OpenWeatherMap.
package sunset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultBaseURL is the OpenWeatherMap current weather endpoint.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

var (
	ErrNoAPIKey = errors.New("sunset: no api key configured")
	ErrNoSunset = errors.New("sunset: response has no sunset")
)

// Fetcher returns the next sunset.
type Fetcher interface {
	FetchSunset(ctx context.Context) (time.Time, error)
}

// Config configures the OpenWeatherMap client.
type Config struct {
	APIKey   string
	Lat      float64
	Lon      float64
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
}

// Client queries OpenWeatherMap with bounded retries.
type Client struct {
	cfg  Config
	http *retryablehttp.Client
}

// NewClient creates a client. logger receives retry diagnostics.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	if logger != nil {
		rc.Logger = logger
	}

	return &Client{cfg: cfg, http: rc}
}

// FetchSunset returns the sunset for the configured location.
func (c *Client) FetchSunset(ctx context.Context) (time.Time, error) {
	if c.cfg.APIKey == "" {
		return time.Time{}, ErrNoAPIKey
	}

	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(c.cfg.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.cfg.Lon, 'f', -1, 64))
	q.Set("appid", c.cfg.APIKey)
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// The error carries the URL, which includes the key.
		return time.Time{}, fmt.Errorf("fetch weather: %w", redact(err, c.cfg.APIKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("fetch weather: status %d", resp.StatusCode)
	}

	var result struct {
		Sys struct {
			Sunset int64 `json:"sunset"`
		} `json:"sys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return time.Time{}, fmt.Errorf("decode weather: %w", err)
	}
	if result.Sys.Sunset == 0 {
		return time.Time{}, ErrNoSunset
	}
	return time.Unix(result.Sys.Sunset, 0), nil
}

// MinuteOfDay converts t to a minute of the day in loc.
func MinuteOfDay(t time.Time, loc *time.Location) int {
	t = t.In(loc)
	return t.Hour()*60 + t.Minute()
}
