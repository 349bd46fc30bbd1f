package risk

import "fmt"

// FeatureOrder is the binding contract between the feature assembler and any
// trained artifact. Changing the order or count invalidates trained models.
var FeatureOrder = []string{"wind_speed_kmh", "temperature_c", "pm2_5", "pm10", "noise_db"}

// FeatureCount is the fixed width of the feature vector.
const FeatureCount = 5

// ReadingPayload is the wire form of a crowd-sourced noise observation.
// Required fields are pointers so a missing field is distinguishable from zero.
type ReadingPayload struct {
	Lat     *float64       `json:"lat"`
	Lng     *float64       `json:"lng"`
	NoiseDB *float64       `json:"noise_db"`
	Extra   map[string]any `json:"-"`
}

// SensorReading is a validated observation held in the rolling buffer.
// Immutable once stored; evicted only by FIFO overflow.
type SensorReading struct {
	Latitude  float64        `json:"lat"`
	Longitude float64        `json:"lng"`
	NoiseDB   float64        `json:"noise_db"`
	Timestamp string         `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// EnvironmentalSnapshot carries current conditions for a coordinate.
// Constructed fresh per risk request, never persisted. Substituted lists the
// fields that were filled from fallback constants instead of live data.
type EnvironmentalSnapshot struct {
	WindSpeedKmh float64 `json:"wind_speed_kmh"`
	TemperatureC float64 `json:"temperature_c"`
	PM25         float64 `json:"pm2_5"`
	PM10         float64 `json:"pm10"`

	Substituted []string `json:"-"`
}

// ActivityLabel identifies the inferred cause of local environmental
// disturbance. Each label carries a fixed risk penalty.
type ActivityLabel string

const (
	LabelNormal            ActivityLabel = "normal"
	LabelTrafficCongestion ActivityLabel = "traffic_congestion"
	LabelConstruction      ActivityLabel = "construction"
)

// Labels lists every activity label in class-index order. The trainer and the
// artifact both rely on this ordering.
var Labels = []ActivityLabel{LabelNormal, LabelTrafficCongestion, LabelConstruction}

// Penalty returns the fixed risk penalty contributed by the label.
func (l ActivityLabel) Penalty() float64 {
	switch l {
	case LabelTrafficCongestion:
		return 25
	case LabelConstruction:
		return 45
	default:
		return 0
	}
}

// Description returns the human-readable form used in API responses.
func (l ActivityLabel) Description() string {
	switch l {
	case LabelTrafficCongestion:
		return "Traffic Congestion Detected"
	case LabelConstruction:
		return "Construction Activity Detected"
	default:
		return "Normal"
	}
}

func labelFromClass(class int) ActivityLabel {
	if class < 0 || class >= len(Labels) {
		return LabelNormal
	}
	return Labels[class]
}

// RiskLevel is the discrete bucket derived from thresholding the risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// Coordinates is a geographic point echoed back in assessments.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RiskAssessment is the engine's output value. Pure output, not persisted.
type RiskAssessment struct {
	Coordinates Coordinates           `json:"coordinates"`
	RiskScore   float64               `json:"risk_score"`
	RiskLevel   RiskLevel             `json:"risk_level"`
	Activity    ActivityLabel         `json:"activity"`
	Description string                `json:"ai_classification"`
	Factors     EnvironmentalSnapshot `json:"factors"`
}

// ValidationError reports a malformed ingestion payload. It is surfaced to the
// caller as a client error and never retried.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}
