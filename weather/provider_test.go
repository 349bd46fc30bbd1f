package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"emission-risk/risk"
)

func newWeatherServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchReturnsLiveConditions(t *testing.T) {
	t.Parallel()

	weatherSrv := newWeatherServer(t,
		`{"current_weather":{"windspeed":14.2,"temperature":31.5}}`, http.StatusOK)
	aqiSrv := newWeatherServer(t,
		`{"current":{"pm2_5":82.0,"pm10":120.0}}`, http.StatusOK)

	provider := NewProvider(WithBaseURLs(weatherSrv.URL, aqiSrv.URL))
	snapshot := provider.Fetch(context.Background(), 28.6139, 77.209)

	if snapshot.WindSpeedKmh != 14.2 || snapshot.TemperatureC != 31.5 {
		t.Fatalf("weather values not propagated: %+v", snapshot)
	}
	if snapshot.PM25 != 82 || snapshot.PM10 != 120 {
		t.Fatalf("air quality values not propagated: %+v", snapshot)
	}
	if len(snapshot.Substituted) != 0 {
		t.Fatalf("live snapshot reported substitutions: %v", snapshot.Substituted)
	}
}

func TestFetchFailsOpenWhenUpstreamsDown(t *testing.T) {
	t.Parallel()

	weatherSrv := newWeatherServer(t, `upstream exploded`, http.StatusInternalServerError)
	aqiSrv := newWeatherServer(t, `also down`, http.StatusBadGateway)

	provider := NewProvider(WithBaseURLs(weatherSrv.URL, aqiSrv.URL))
	snapshot := provider.Fetch(context.Background(), 28.6139, 77.209)

	if snapshot.WindSpeedKmh != FallbackWindSpeedKmh ||
		snapshot.TemperatureC != FallbackTemperatureC ||
		snapshot.PM25 != FallbackPM25 ||
		snapshot.PM10 != FallbackPM10 {
		t.Fatalf("expected full fallback tuple, got %+v", snapshot)
	}
	if len(snapshot.Substituted) != 4 {
		t.Fatalf("expected 4 substituted fields, got %v", snapshot.Substituted)
	}
}

func TestFetchSubstitutesMissingFieldsOnly(t *testing.T) {
	t.Parallel()

	// Wind is absent from an otherwise valid response.
	weatherSrv := newWeatherServer(t,
		`{"current_weather":{"temperature":19.0}}`, http.StatusOK)
	aqiSrv := newWeatherServer(t,
		`{"current":{"pm2_5":40.0,"pm10":55.0}}`, http.StatusOK)

	provider := NewProvider(WithBaseURLs(weatherSrv.URL, aqiSrv.URL))
	snapshot := provider.Fetch(context.Background(), 28.6139, 77.209)

	if snapshot.WindSpeedKmh != FallbackWindSpeedKmh {
		t.Fatalf("missing wind not substituted: %v", snapshot.WindSpeedKmh)
	}
	if snapshot.TemperatureC != 19 {
		t.Fatalf("present temperature overwritten: %v", snapshot.TemperatureC)
	}
	if len(snapshot.Substituted) != 1 || snapshot.Substituted[0] != "wind_speed_kmh" {
		t.Fatalf("unexpected substitution list: %v", snapshot.Substituted)
	}
}

func TestFetchFailsOpenOnTimeout(t *testing.T) {
	t.Parallel()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(slow.Close)

	provider := NewProvider(
		WithBaseURLs(slow.URL, slow.URL),
		WithTimeout(50*time.Millisecond),
	)

	start := time.Now()
	snapshot := provider.Fetch(context.Background(), 28.6139, 77.209)
	elapsed := time.Since(start)

	if snapshot.WindSpeedKmh != FallbackWindSpeedKmh || snapshot.PM25 != FallbackPM25 {
		t.Fatalf("expected fallback snapshot on timeout, got %+v", snapshot)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("fetch blocked for %v despite timeout", elapsed)
	}
}

type memoryCache struct {
	entries map[string]risk.EnvironmentalSnapshot
	puts    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]risk.EnvironmentalSnapshot{}}
}

func (c *memoryCache) key(lat, lng float64) string {
	return fmt.Sprintf("%.4f:%.4f", lat, lng)
}

func (c *memoryCache) Get(_ context.Context, lat, lng float64) (risk.EnvironmentalSnapshot, bool) {
	snapshot, ok := c.entries[c.key(lat, lng)]
	return snapshot, ok
}

func (c *memoryCache) Put(_ context.Context, lat, lng float64, snapshot risk.EnvironmentalSnapshot) {
	c.entries[c.key(lat, lng)] = snapshot
	c.puts++
}

func TestFetchUsesSnapshotCache(t *testing.T) {
	t.Parallel()

	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/forecast" {
			w.Write([]byte(`{"current_weather":{"windspeed":12.0,"temperature":22.0}}`))
			return
		}
		w.Write([]byte(`{"current":{"pm2_5":33.0,"pm10":44.0}}`))
	}))
	t.Cleanup(upstream.Close)

	memory := newMemoryCache()
	provider := NewProvider(
		WithBaseURLs(upstream.URL, upstream.URL),
		WithSnapshotCache(memory),
	)

	first := provider.Fetch(context.Background(), 28.6139, 77.209)
	if calls != 2 {
		t.Fatalf("expected 2 upstream calls for the first fetch, got %d", calls)
	}
	if memory.puts != 1 {
		t.Fatalf("live snapshot was not cached (puts=%d)", memory.puts)
	}

	second := provider.Fetch(context.Background(), 28.6139, 77.209)
	if calls != 2 {
		t.Fatalf("cached fetch still hit upstream (%d calls)", calls)
	}
	if second.WindSpeedKmh != first.WindSpeedKmh || second.PM25 != first.PM25 {
		t.Fatalf("cached snapshot differs: %+v vs %+v", second, first)
	}
}

func TestFallbackSnapshotsAreNotCached(t *testing.T) {
	t.Parallel()

	down := newWeatherServer(t, `nope`, http.StatusServiceUnavailable)
	memory := newMemoryCache()
	provider := NewProvider(
		WithBaseURLs(down.URL, down.URL),
		WithSnapshotCache(memory),
	)

	provider.Fetch(context.Background(), 28.6139, 77.209)
	if memory.puts != 0 {
		t.Fatalf("fallback snapshot was cached (puts=%d)", memory.puts)
	}
}
