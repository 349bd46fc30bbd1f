package risk

import (
	"math/rand"
	"time"
)

// TrainingConfig controls the offline training procedure.
type TrainingConfig struct {
	Samples  int
	Trees    int
	MaxDepth int
	MinSplit int
	Seed     int64
}

// DefaultTrainingConfig mirrors the production training run: 2000 synthetic
// samples, 100 trees, depth capped at 6.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Samples:  2000,
		Trees:    100,
		MaxDepth: 6,
		MinSplit: 4,
		Seed:     42,
	}
}

// Per-feature upper bounds for the synthetic generator, in FeatureOrder.
// Every feature is drawn independently and uniformly from [0, bound).
var featureRanges = [FeatureCount]float64{25, 45, 400, 500, 100}

// Label-rule thresholds the generator teaches the model to reproduce.
const (
	constructionNoiseDB = 80.0
	constructionPM10    = 250.0
	trafficNoiseDB      = 70.0
	trafficPM25         = 150.0
)

// RuleLabel assigns the deterministic ground-truth label for a feature vector.
// Construction dominates traffic congestion when both conditions hold.
func RuleLabel(features []float64) ActivityLabel {
	noise := features[4]
	pm25 := features[2]
	pm10 := features[3]

	switch {
	case noise > constructionNoiseDB && pm10 > constructionPM10:
		return LabelConstruction
	case noise > trafficNoiseDB && pm25 > trafficPM25:
		return LabelTrafficCongestion
	default:
		return LabelNormal
	}
}

func ruleClass(features []float64) int {
	label := RuleLabel(features)
	for i, l := range Labels {
		if l == label {
			return i
		}
	}
	return 0
}

// GenerateSyntheticSamples draws n labelled feature vectors from the fixed
// per-feature ranges using the supplied rng.
func GenerateSyntheticSamples(n int, rng *rand.Rand) ([][]float64, []int) {
	x := make([][]float64, n)
	y := make([]int, n)

	for i := 0; i < n; i++ {
		features := make([]float64, FeatureCount)
		for f := 0; f < FeatureCount; f++ {
			features[f] = rng.Float64() * featureRanges[f]
		}
		x[i] = features
		y[i] = ruleClass(features)
	}

	return x, y
}

// TrainActivityModel runs the full offline procedure: generate the synthetic
// dataset, fit the ensemble and wrap it in a serializable artifact carrying
// the feature-order contract.
func TrainActivityModel(cfg TrainingConfig) *ModelArtifact {
	rng := rand.New(rand.NewSource(cfg.Seed))

	x, y := GenerateSyntheticSamples(cfg.Samples, rng)
	forest := TrainForest(x, y, cfg, rng)

	labels := make([]string, len(Labels))
	for i, l := range Labels {
		labels[i] = string(l)
	}

	return &ModelArtifact{
		SchemaVersion: ArtifactSchemaVersion,
		FeatureOrder:  append([]string(nil), FeatureOrder...),
		Labels:        labels,
		MaxDepth:      cfg.MaxDepth,
		Samples:       cfg.Samples,
		Seed:          cfg.Seed,
		TrainedAt:     time.Now().UTC().Format(time.RFC3339),
		Forest:        forest,
	}
}

// EvaluateAccuracy classifies every sample and reports the fraction matching
// the generator labels.
func EvaluateAccuracy(forest *Forest, x [][]float64, y []int) float64 {
	if len(x) == 0 {
		return 0
	}
	correct := 0
	for i := range x {
		if forest.Predict(x[i]) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x))
}
