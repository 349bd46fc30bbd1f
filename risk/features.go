package risk

// FallbackNoiseDB is assumed when neither the request nor the buffer can
// supply a noise reading.
const FallbackNoiseDB = 50.0

// Noise sources, reported so callers can see which branch resolved the value.
const (
	NoiseSourceRequest = "request"
	NoiseSourceBuffer  = "buffer"
	NoiseSourceDefault = "default"
)

// ResolveNoise picks the noise value for an assessment. A value passed with
// the request always wins; otherwise the buffer's latest reading is used, and
// failing that the fallback constant.
func ResolveNoise(requested *float64, buffer *SensorBuffer) (float64, string) {
	if requested != nil {
		return *requested, NoiseSourceRequest
	}
	if buffer != nil {
		if noise, ok := buffer.LatestNoise(); ok {
			return noise, NoiseSourceBuffer
		}
	}
	return FallbackNoiseDB, NoiseSourceDefault
}

// AssembleFeatures builds the fixed-order vector consumed by the classifier.
// The order must match FeatureOrder exactly.
func AssembleFeatures(snapshot EnvironmentalSnapshot, noiseDB float64) []float64 {
	return []float64{
		snapshot.WindSpeedKmh,
		snapshot.TemperatureC,
		snapshot.PM25,
		snapshot.PM10,
		noiseDB,
	}
}
