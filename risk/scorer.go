package risk

import "math"

// Score composition constants. These values were carried over verbatim from
// the tuned deployment; treat them as configuration, not knobs to improve.
const (
	baseRisk     = 20.0
	windCeiling  = 20.0
	aqiFactorCap = 35.0
	scoreCap     = 100.0

	riskHighThreshold     = 75.0
	riskModerateThreshold = 50.0
)

// ComputeScore evaluates the deterministic risk formula at full precision.
func ComputeScore(snapshot EnvironmentalSnapshot, label ActivityLabel) float64 {
	windFactor := math.Max(0, windCeiling-snapshot.WindSpeedKmh)
	aqiFactor := math.Min((snapshot.PM25*0.6+snapshot.PM10*0.4)/4, aqiFactorCap)
	return math.Min(scoreCap, baseRisk+windFactor+aqiFactor+label.Penalty())
}

// LevelFor buckets a score into the discrete risk level.
func LevelFor(score float64) RiskLevel {
	switch {
	case score > riskHighThreshold:
		return RiskHigh
	case score > riskModerateThreshold:
		return RiskModerate
	default:
		return RiskLow
	}
}

// BuildAssessment combines the snapshot and classified label into the final
// output value. The score is rounded to one decimal for presentation only;
// the level is derived from the full-precision value.
func BuildAssessment(coords Coordinates, snapshot EnvironmentalSnapshot, label ActivityLabel) RiskAssessment {
	score := ComputeScore(snapshot, label)
	return RiskAssessment{
		Coordinates: coords,
		RiskScore:   math.Round(score*10) / 10,
		RiskLevel:   LevelFor(score),
		Activity:    label,
		Description: label.Description(),
		Factors:     snapshot,
	}
}
