// Package weather implements the environmental data provider: two independent
// Open-Meteo lookups (current weather and air quality) with a fail-open
// fallback policy. The provider never returns an error; degraded upstreams
// resolve to fixed constants so a risk assessment is always possible.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"emission-risk/metrics"
	"emission-risk/risk"
	"emission-risk/utils"

	"github.com/mdobak/go-xerrors"
)

// Fallback constants substituted when a lookup or field is unavailable.
// Carried over verbatim from the tuned deployment; do not adjust.
const (
	FallbackWindSpeedKmh = 10.0
	FallbackTemperatureC = 25.0
	FallbackPM25         = 50.0
	FallbackPM10         = 60.0
)

// Default upstream endpoints.
const (
	DefaultWeatherBaseURL    = "https://api.open-meteo.com"
	DefaultAirQualityBaseURL = "https://air-quality-api.open-meteo.com"
)

// DefaultTimeout bounds each upstream lookup. A hung upstream must never
// block an assessment indefinitely.
const DefaultTimeout = 5 * time.Second

// SnapshotCache lets the provider reuse recently fetched snapshots.
// Implementations must be fail-open: a broken cache reads as a miss.
type SnapshotCache interface {
	Get(ctx context.Context, lat, lng float64) (risk.EnvironmentalSnapshot, bool)
	Put(ctx context.Context, lat, lng float64, snapshot risk.EnvironmentalSnapshot)
}

// Provider fetches current conditions for a coordinate.
type Provider struct {
	client            *http.Client
	weatherBaseURL    string
	airQualityBaseURL string
	cache             SnapshotCache
}

// Option configures a Provider.
type Option func(*Provider)

// WithTimeout overrides the per-lookup timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) { p.client.Timeout = timeout }
}

// WithBaseURLs points the provider at alternative upstream hosts.
func WithBaseURLs(weatherBase, airQualityBase string) Option {
	return func(p *Provider) {
		if weatherBase != "" {
			p.weatherBaseURL = weatherBase
		}
		if airQualityBase != "" {
			p.airQualityBaseURL = airQualityBase
		}
	}
}

// WithSnapshotCache attaches a snapshot cache.
func WithSnapshotCache(cache SnapshotCache) Option {
	return func(p *Provider) { p.cache = cache }
}

// NewProvider builds a provider with the default endpoints and timeout.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		client:            &http.Client{Timeout: DefaultTimeout},
		weatherBaseURL:    DefaultWeatherBaseURL,
		airQualityBaseURL: DefaultAirQualityBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type currentWeather struct {
	WindSpeed   *float64 `json:"windspeed"`
	Temperature *float64 `json:"temperature"`
}

type weatherResponse struct {
	CurrentWeather *currentWeather `json:"current_weather"`
}

type currentAirQuality struct {
	PM25 *float64 `json:"pm2_5"`
	PM10 *float64 `json:"pm10"`
}

type airQualityResponse struct {
	Current *currentAirQuality `json:"current"`
}

// Fetch returns a complete snapshot for the coordinate. Each of the two
// lookups fails open independently: on any transport or parse error the
// affected fields are filled from the fallback constants, the substitution is
// recorded on the snapshot and a warning is logged. Fetch never returns an
// error and is never retried.
func (p *Provider) Fetch(ctx context.Context, lat, lng float64) risk.EnvironmentalSnapshot {
	logger := utils.GetLogger()

	if p.cache != nil {
		if snapshot, ok := p.cache.Get(ctx, lat, lng); ok {
			return snapshot
		}
	}

	snapshot := risk.EnvironmentalSnapshot{}

	wind, temp, missing, err := p.fetchWeather(ctx, lat, lng)
	snapshot.Substituted = append(snapshot.Substituted, missing...)
	if err != nil {
		logger.WarnContext(ctx, "weather lookup unavailable, using fallback values",
			slog.Float64("lat", lat),
			slog.Float64("lng", lng),
			slog.Any("error", xerrors.New(err)))
		metrics.UpstreamFallbacks.WithLabelValues("weather").Inc()
		snapshot.Substituted = append(snapshot.Substituted, "wind_speed_kmh", "temperature_c")
		wind, temp = FallbackWindSpeedKmh, FallbackTemperatureC
	}
	snapshot.WindSpeedKmh = wind
	snapshot.TemperatureC = temp

	pm25, pm10, missing, err := p.fetchAirQuality(ctx, lat, lng)
	snapshot.Substituted = append(snapshot.Substituted, missing...)
	if err != nil {
		logger.WarnContext(ctx, "air quality lookup unavailable, using fallback values",
			slog.Float64("lat", lat),
			slog.Float64("lng", lng),
			slog.Any("error", xerrors.New(err)))
		metrics.UpstreamFallbacks.WithLabelValues("air_quality").Inc()
		snapshot.Substituted = append(snapshot.Substituted, "pm2_5", "pm10")
		pm25, pm10 = FallbackPM25, FallbackPM10
	}
	snapshot.PM25 = pm25
	snapshot.PM10 = pm10

	// Only fully live snapshots are worth caching.
	if p.cache != nil && len(snapshot.Substituted) == 0 {
		p.cache.Put(ctx, lat, lng, snapshot)
	}

	return snapshot
}

func (p *Provider) fetchWeather(ctx context.Context, lat, lng float64) (wind, temp float64, missing []string, err error) {
	url := fmt.Sprintf("%s/v1/forecast?latitude=%f&longitude=%f&current_weather=true",
		p.weatherBaseURL, lat, lng)

	var payload weatherResponse
	if err := p.getJSON(ctx, url, &payload); err != nil {
		return 0, 0, nil, err
	}

	// Missing individual fields in an otherwise successful response fall back
	// per-field.
	wind, temp = FallbackWindSpeedKmh, FallbackTemperatureC
	missing = []string{}
	if payload.CurrentWeather == nil || payload.CurrentWeather.WindSpeed == nil {
		missing = append(missing, "wind_speed_kmh")
	} else {
		wind = *payload.CurrentWeather.WindSpeed
	}
	if payload.CurrentWeather == nil || payload.CurrentWeather.Temperature == nil {
		missing = append(missing, "temperature_c")
	} else {
		temp = *payload.CurrentWeather.Temperature
	}
	return wind, temp, missing, nil
}

func (p *Provider) fetchAirQuality(ctx context.Context, lat, lng float64) (pm25, pm10 float64, missing []string, err error) {
	url := fmt.Sprintf("%s/v1/air-quality?latitude=%f&longitude=%f&current=pm10,pm2_5",
		p.airQualityBaseURL, lat, lng)

	var payload airQualityResponse
	if err := p.getJSON(ctx, url, &payload); err != nil {
		return 0, 0, nil, err
	}

	pm25, pm10 = FallbackPM25, FallbackPM10
	missing = []string{}
	if payload.Current == nil || payload.Current.PM25 == nil {
		missing = append(missing, "pm2_5")
	} else {
		pm25 = *payload.Current.PM25
	}
	if payload.Current == nil || payload.Current.PM10 == nil {
		missing = append(missing, "pm10")
	} else {
		pm10 = *payload.Current.PM10
	}
	return pm25, pm10, missing, nil
}

func (p *Provider) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
