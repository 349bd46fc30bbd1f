package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"emission-risk/cache"
	"emission-risk/metrics"
	"emission-risk/risk"
	"emission-risk/utils"
	"emission-risk/weather"

	"github.com/mdobak/go-xerrors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type apiError struct {
	Message string `json:"error"`
}

// Fixed reference point used when a risk request omits coordinates.
const (
	DefaultLatitude  = 28.6139
	DefaultLongitude = 77.2090
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

func setCORSHeaders(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", methods)
}

// environmentFetcher is the boundary the handlers need from the provider.
type environmentFetcher interface {
	Fetch(ctx context.Context, lat, lng float64) risk.EnvironmentalSnapshot
}

func newStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "Emission Risk Backend Running",
			"routes": []string{
				"GET /get_emission_risk",
				"POST /ingest_sensor_data",
				"GET /model/stats",
				"GET /health",
			},
		})
	}
}

func newIngestHandler(buffer *risk.SensorBuffer) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.RequestDuration.WithLabelValues(r.Method, "/ingest_sensor_data").Observe(time.Since(start).Seconds())
		}()

		setCORSHeaders(w, "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			metrics.RequestsTotal.WithLabelValues(r.Method, "/ingest_sensor_data", "405").Inc()
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			metrics.RequestsTotal.WithLabelValues(r.Method, "/ingest_sensor_data", "400").Inc()
			writeJSONError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}

		payload := risk.ReadingPayload{Extra: map[string]interface{}{}}
		for key, value := range body {
			number, isNumber := value.(float64)
			switch key {
			case "lat":
				if isNumber {
					payload.Lat = &number
				}
			case "lng":
				if isNumber {
					payload.Lng = &number
				}
			case "noise_db":
				if isNumber {
					payload.NoiseDB = &number
				}
			case "timestamp":
				// Arrival time is stamped server-side.
			default:
				payload.Extra[key] = value
			}
		}

		reading, err := buffer.Ingest(payload, time.Now())
		if err != nil {
			var vErr *risk.ValidationError
			if errors.As(err, &vErr) {
				metrics.ReadingsRejected.WithLabelValues(vErr.Field).Inc()
			}
			metrics.RequestsTotal.WithLabelValues(r.Method, "/ingest_sensor_data", "400").Inc()
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		metrics.ReadingsIngested.Inc()
		metrics.BufferSize.Set(float64(buffer.Len()))
		metrics.RequestsTotal.WithLabelValues(r.Method, "/ingest_sensor_data", "200").Inc()

		logger.DebugContext(r.Context(), "sensor reading ingested",
			slog.Float64("lat", reading.Latitude),
			slog.Float64("lng", reading.Longitude),
			slog.Float64("noiseDb", reading.NoiseDB))

		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "Data ingested",
		})
	}
}

func newRiskHandler(buffer *risk.SensorBuffer, provider environmentFetcher, classifier risk.ActivityClassifier) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.RequestDuration.WithLabelValues(r.Method, "/get_emission_risk").Observe(time.Since(start).Seconds())
		}()

		setCORSHeaders(w, "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			metrics.RequestsTotal.WithLabelValues(r.Method, "/get_emission_risk", "405").Inc()
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		query := r.URL.Query()
		lat := queryFloat(query.Get("lat"), DefaultLatitude)
		lng := queryFloat(query.Get("lng"), DefaultLongitude)

		var requestedNoise *float64
		if raw := query.Get("noise_db"); raw != "" {
			if value, err := strconv.ParseFloat(raw, 64); err == nil {
				requestedNoise = &value
			}
		}

		snapshot := provider.Fetch(r.Context(), lat, lng)
		noise, noiseSource := risk.ResolveNoise(requestedNoise, buffer)
		features := risk.AssembleFeatures(snapshot, noise)
		label := classifier.Classify(features)
		assessment := risk.BuildAssessment(risk.Coordinates{Lat: lat, Lng: lng}, snapshot, label)

		metrics.AssessmentsTotal.WithLabelValues(string(assessment.RiskLevel), string(label)).Inc()
		metrics.RequestsTotal.WithLabelValues(r.Method, "/get_emission_risk", "200").Inc()

		logger.InfoContext(r.Context(), "risk assessment produced",
			slog.Float64("lat", lat),
			slog.Float64("lng", lng),
			slog.Float64("riskScore", assessment.RiskScore),
			slog.String("riskLevel", string(assessment.RiskLevel)),
			slog.String("activity", string(label)),
			slog.String("noiseSource", noiseSource),
			slog.Int("substitutedFields", len(snapshot.Substituted)))

		writeJSON(w, http.StatusOK, assessment)
	}
}

// queryFloat parses an optional query parameter, falling back to the default
// when the parameter is absent or malformed. An assessment request never
// fails over input; it degrades to the reference point.
func queryFloat(raw string, fallback float64) float64 {
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func newModelStatsHandler(classifier risk.ActivityClassifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w, "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, classifier.Stats())
	}
}

func newHealthHandler(classifier risk.ActivityClassifier, snapshotCache *cache.SnapshotCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		degraded := classifier.Stats().Mode == "degraded"
		if degraded {
			status = "degraded"
		}

		payload := map[string]interface{}{
			"status":              status,
			"classifier_degraded": degraded,
			"timestamp":           time.Now().UTC().Format(time.RFC3339),
		}
		if snapshotCache != nil {
			payload["cache"] = snapshotCache.Ping(r.Context()) == nil
		}

		writeJSON(w, http.StatusOK, payload)
	}
}

func serve(port string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	modelPath := utils.GetEnv("ACTIVITY_MODEL_PATH", risk.DefaultModelPath)
	classifier := risk.LoadClassifier(modelPath)
	if classifier.Stats().Mode == "degraded" {
		metrics.ClassifierDegraded.Set(1)
	}

	capacityStr := utils.GetEnv("SENSOR_BUFFER_CAPACITY", strconv.Itoa(risk.DefaultBufferCapacity))
	capacity, err := strconv.Atoi(capacityStr)
	if err != nil {
		log.Fatalf("invalid SENSOR_BUFFER_CAPACITY value '%s': %v", capacityStr, err)
	}
	buffer := risk.NewSensorBuffer(capacity)

	timeoutMsStr := utils.GetEnv("UPSTREAM_TIMEOUT_MS", "5000")
	timeoutMs, err := strconv.Atoi(timeoutMsStr)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_TIMEOUT_MS value '%s': %v", timeoutMsStr, err)
	}

	opts := []weather.Option{
		weather.WithTimeout(time.Duration(timeoutMs) * time.Millisecond),
		weather.WithBaseURLs(utils.GetEnv("WEATHER_BASE_URL", ""), utils.GetEnv("AIR_QUALITY_BASE_URL", "")),
	}

	var snapshotCache *cache.SnapshotCache
	if redisAddr := utils.GetEnv("REDIS_ADDR", ""); redisAddr != "" {
		redisDB, _ := strconv.Atoi(utils.GetEnv("REDIS_DB", "0"))
		snapshotCache, err = cache.NewSnapshotCache(redisAddr, utils.GetEnv("REDIS_PASSWORD", ""), redisDB, cache.DefaultTTL)
		if err != nil {
			// The cache is an optimisation; serving continues without it.
			logger.WarnContext(ctx, "snapshot cache unavailable, continuing without it",
				slog.String("addr", redisAddr),
				slog.Any("error", xerrors.New(err)))
			snapshotCache = nil
		} else {
			log.Printf("Connected snapshot cache at %s", redisAddr)
			opts = append(opts, weather.WithSnapshotCache(snapshotCache))
			defer snapshotCache.Close()
		}
	}

	provider := weather.NewProvider(opts...)

	mux := http.NewServeMux()
	mux.HandleFunc("/", newStatusHandler())
	mux.HandleFunc("/ingest_sensor_data", newIngestHandler(buffer))
	mux.HandleFunc("/get_emission_risk", newRiskHandler(buffer, provider, classifier))
	mux.HandleFunc("/model/stats", newModelStatsHandler(classifier))
	mux.HandleFunc("/health", newHealthHandler(classifier, snapshotCache))
	mux.Handle("/prometheus", promhttp.Handler())

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
