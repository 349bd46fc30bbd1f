package risk

import (
	"sync"
	"time"
)

// DefaultBufferCapacity bounds the rolling store of noise observations.
const DefaultBufferCapacity = 100

// SensorBuffer is a fixed-capacity FIFO store of recent readings. It is the
// only shared mutable resource in the engine, so all access goes through its
// mutex. Inject it where it is needed rather than reaching for package state.
type SensorBuffer struct {
	mu       sync.Mutex
	readings []SensorReading
	capacity int
}

// NewSensorBuffer creates a buffer holding at most capacity readings.
// A non-positive capacity falls back to DefaultBufferCapacity.
func NewSensorBuffer(capacity int) *SensorBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &SensorBuffer{
		readings: make([]SensorReading, 0, capacity),
		capacity: capacity,
	}
}

// Ingest validates the payload, stamps it with the arrival time and appends it
// to the buffer, evicting the oldest reading when the capacity would be
// exceeded. Validation happens before any mutation: a rejected payload leaves
// the buffer untouched.
func (b *SensorBuffer) Ingest(payload ReadingPayload, arrival time.Time) (SensorReading, error) {
	switch {
	case payload.Lat == nil:
		return SensorReading{}, &ValidationError{Field: "lat"}
	case payload.Lng == nil:
		return SensorReading{}, &ValidationError{Field: "lng"}
	case payload.NoiseDB == nil:
		return SensorReading{}, &ValidationError{Field: "noise_db"}
	}

	reading := SensorReading{
		Latitude:  *payload.Lat,
		Longitude: *payload.Lng,
		NoiseDB:   *payload.NoiseDB,
		Timestamp: arrival.Format(time.RFC3339),
		Extra:     payload.Extra,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.readings = append(b.readings, reading)
	if len(b.readings) > b.capacity {
		b.readings = b.readings[1:]
	}

	return reading, nil
}

// LatestNoise returns the noise value of the most recent reading. The second
// return value is false when the buffer is empty.
func (b *SensorBuffer) LatestNoise() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.readings) == 0 {
		return 0, false
	}
	return b.readings[len(b.readings)-1].NoiseDB, true
}

// Readings returns a copy of the buffered readings in arrival order.
func (b *SensorBuffer) Readings() []SensorReading {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]SensorReading, len(b.readings))
	copy(out, b.readings)
	return out
}

// Len reports the number of readings currently held.
func (b *SensorBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readings)
}
