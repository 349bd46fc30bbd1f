package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"emission-risk/utils"

	"github.com/mdobak/go-xerrors"
)

// ArtifactSchemaVersion is bumped whenever the serialized layout changes.
const ArtifactSchemaVersion = 1

// DefaultModelPath is where the serving process looks for a trained artifact.
const DefaultModelPath = "risk/activity_model.json"

// ModelArtifact is the serialized output of the offline trainer, consumed
// read-only at inference time. It carries the exact feature-order contract it
// was trained against; readers must reject artifacts with a different shape.
type ModelArtifact struct {
	SchemaVersion int      `json:"schema_version"`
	FeatureOrder  []string `json:"feature_order"`
	Labels        []string `json:"labels"`
	MaxDepth      int      `json:"max_depth"`
	Samples       int      `json:"samples"`
	Seed          int64    `json:"seed"`
	TrainedAt     string   `json:"trained_at,omitempty"`
	Forest        *Forest  `json:"forest"`
}

// Validate checks the artifact against the engine's feature and label
// contracts. Shape mismatches are rejected outright rather than truncated.
func (a *ModelArtifact) Validate() error {
	if a.SchemaVersion != ArtifactSchemaVersion {
		return fmt.Errorf("unsupported artifact schema version %d (expected %d)", a.SchemaVersion, ArtifactSchemaVersion)
	}
	if len(a.FeatureOrder) != FeatureCount {
		return fmt.Errorf("artifact has %d features, expected %d", len(a.FeatureOrder), FeatureCount)
	}
	for i, name := range a.FeatureOrder {
		if name != FeatureOrder[i] {
			return fmt.Errorf("artifact feature %d is %q, expected %q", i, name, FeatureOrder[i])
		}
	}
	if len(a.Labels) != len(Labels) {
		return fmt.Errorf("artifact has %d labels, expected %d", len(a.Labels), len(Labels))
	}
	for i, name := range a.Labels {
		if name != string(Labels[i]) {
			return fmt.Errorf("artifact label %d is %q, expected %q", i, name, Labels[i])
		}
	}
	if a.Forest == nil || len(a.Forest.Trees) == 0 {
		return fmt.Errorf("artifact contains no trained trees")
	}
	if a.Forest.Classes != len(Labels) {
		return fmt.Errorf("artifact forest covers %d classes, expected %d", a.Forest.Classes, len(Labels))
	}
	return nil
}

// LoadArtifact reads and validates a trained artifact from disk.
func LoadArtifact(path string) (*ModelArtifact, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact (%s): %w", path, err)
	}

	var artifact ModelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("unable to parse model artifact: %w", err)
	}
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}

	return &artifact, nil
}

// SaveArtifact persists the artifact atomically so a crashed write never
// leaves a truncated model behind.
func SaveArtifact(artifact *ModelArtifact, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ActivityClassifier maps an assembled feature vector to an activity label.
// Two implementations exist: the trained model and a degraded fallback that
// always answers Normal. The variant is chosen once at startup.
type ActivityClassifier interface {
	Classify(features []float64) ActivityLabel
	Stats() ClassifierStats
}

// ClassifierStats exposes metadata about the loaded model.
type ClassifierStats struct {
	Mode         string   `json:"mode"`
	TreeCount    int      `json:"treeCount,omitempty"`
	MaxDepth     int      `json:"maxDepth,omitempty"`
	Samples      int      `json:"samples,omitempty"`
	FeatureOrder []string `json:"featureOrder"`
	Labels       []string `json:"labels,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

type trainedClassifier struct {
	artifact *ModelArtifact
}

// NewTrainedClassifier wraps a validated artifact for inference.
func NewTrainedClassifier(artifact *ModelArtifact) (ActivityClassifier, error) {
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return &trainedClassifier{artifact: artifact}, nil
}

func (c *trainedClassifier) Classify(features []float64) ActivityLabel {
	if len(features) != FeatureCount {
		return LabelNormal
	}
	return c.artifact.Forest.PredictLabel(features)
}

func (c *trainedClassifier) Stats() ClassifierStats {
	return ClassifierStats{
		Mode:         "trained",
		TreeCount:    len(c.artifact.Forest.Trees),
		MaxDepth:     c.artifact.MaxDepth,
		Samples:      c.artifact.Samples,
		FeatureOrder: append([]string(nil), c.artifact.FeatureOrder...),
		Labels:       append([]string(nil), c.artifact.Labels...),
	}
}

type degradedClassifier struct {
	reason string
}

// NewDegradedClassifier returns the fail-open fallback: every vector is
// labelled Normal, contributing zero penalty.
func NewDegradedClassifier(reason string) ActivityClassifier {
	return &degradedClassifier{reason: reason}
}

func (c *degradedClassifier) Classify([]float64) ActivityLabel {
	return LabelNormal
}

func (c *degradedClassifier) Stats() ClassifierStats {
	return ClassifierStats{
		Mode:         "degraded",
		FeatureOrder: append([]string(nil), FeatureOrder...),
		Reason:       c.reason,
	}
}

// LoadClassifier loads the artifact at path, falling back to the degraded
// classifier when it is missing or corrupt. The startup warning logged here
// is the only user-visible trace of a missing model; requests never fail
// because of it.
func LoadClassifier(path string) ActivityClassifier {
	logger := utils.GetLogger()
	ctx := context.Background()

	artifact, err := LoadArtifact(path)
	if err != nil {
		logger.WarnContext(ctx, "activity model unavailable, serving degraded (all activity reported normal)",
			slog.String("path", path),
			slog.Any("error", xerrors.New(err)))
		return NewDegradedClassifier(err.Error())
	}

	classifier, err := NewTrainedClassifier(artifact)
	if err != nil {
		logger.WarnContext(ctx, "activity model rejected, serving degraded",
			slog.String("path", path),
			slog.Any("error", xerrors.New(err)))
		return NewDegradedClassifier(err.Error())
	}

	logger.InfoContext(ctx, "activity model loaded",
		slog.String("path", path),
		slog.Int("trees", len(artifact.Forest.Trees)),
		slog.Int("maxDepth", artifact.MaxDepth))

	return classifier
}
