package risk

import (
	"errors"
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }

func payloadFor(lat, lng, noise float64) ReadingPayload {
	return ReadingPayload{Lat: floatPtr(lat), Lng: floatPtr(lng), NoiseDB: floatPtr(noise)}
}

func TestBufferNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	buffer := NewSensorBuffer(DefaultBufferCapacity)
	now := time.Now()

	for i := 0; i < 250; i++ {
		if _, err := buffer.Ingest(payloadFor(28.6, 77.2, float64(i)), now); err != nil {
			t.Fatalf("Ingest returned error at %d: %v", i, err)
		}
		if buffer.Len() > DefaultBufferCapacity {
			t.Fatalf("buffer grew to %d entries after %d ingests", buffer.Len(), i+1)
		}
	}

	if buffer.Len() != DefaultBufferCapacity {
		t.Fatalf("expected buffer at capacity %d, got %d", DefaultBufferCapacity, buffer.Len())
	}

	noise, ok := buffer.LatestNoise()
	if !ok {
		t.Fatal("LatestNoise reported empty buffer")
	}
	if noise != 249 {
		t.Fatalf("expected latest noise 249, got %v", noise)
	}
}

func TestBufferEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	buffer := NewSensorBuffer(3)
	now := time.Now()

	for i := 1; i <= 4; i++ {
		if _, err := buffer.Ingest(payloadFor(28.6, 77.2, float64(i*10)), now); err != nil {
			t.Fatalf("Ingest returned error: %v", err)
		}
	}

	readings := buffer.Readings()
	if len(readings) != 3 {
		t.Fatalf("expected 3 readings after overflow, got %d", len(readings))
	}
	if readings[0].NoiseDB != 20 {
		t.Fatalf("expected oldest surviving reading to be 20 dB, got %v", readings[0].NoiseDB)
	}
	if readings[2].NoiseDB != 40 {
		t.Fatalf("expected newest reading to be 40 dB, got %v", readings[2].NoiseDB)
	}
}

func TestIngestRejectsMissingFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload ReadingPayload
		field   string
	}{
		{"missing lat", ReadingPayload{Lng: floatPtr(77.2), NoiseDB: floatPtr(60)}, "lat"},
		{"missing lng", ReadingPayload{Lat: floatPtr(28.6), NoiseDB: floatPtr(60)}, "lng"},
		{"missing noise_db", ReadingPayload{Lat: floatPtr(28.6), Lng: floatPtr(77.2)}, "noise_db"},
		{"empty payload", ReadingPayload{}, "lat"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buffer := NewSensorBuffer(DefaultBufferCapacity)

			_, err := buffer.Ingest(tc.payload, time.Now())
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if vErr.Field != tc.field {
				t.Fatalf("expected rejected field %q, got %q", tc.field, vErr.Field)
			}
			if buffer.Len() != 0 {
				t.Fatalf("rejected payload mutated buffer: length %d", buffer.Len())
			}
		})
	}
}

func TestIngestStampsArrivalTimeAndKeepsExtras(t *testing.T) {
	t.Parallel()

	buffer := NewSensorBuffer(DefaultBufferCapacity)
	arrival := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	payload := payloadFor(28.6, 77.2, 64)
	payload.Extra = map[string]any{"device_id": "node-7"}

	reading, err := buffer.Ingest(payload, arrival)
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	if reading.Timestamp != "2026-08-30T12:00:00Z" {
		t.Fatalf("unexpected timestamp %q", reading.Timestamp)
	}
	if reading.Extra["device_id"] != "node-7" {
		t.Fatalf("extra field lost: %v", reading.Extra)
	}
}

func TestLatestNoiseOnEmptyBuffer(t *testing.T) {
	t.Parallel()

	buffer := NewSensorBuffer(DefaultBufferCapacity)
	if _, ok := buffer.LatestNoise(); ok {
		t.Fatal("expected no data from empty buffer")
	}
}
