package risk

import (
	"os"
	"path/filepath"
	"testing"
)

func smallTrainedArtifact(t *testing.T) *ModelArtifact {
	t.Helper()
	cfg := TrainingConfig{Samples: 400, Trees: 3, MaxDepth: 4, MinSplit: 2, Seed: 9}
	return TrainActivityModel(cfg)
}

func TestLoadClassifierDegradesWhenArtifactMissing(t *testing.T) {
	t.Parallel()

	classifier := LoadClassifier(filepath.Join(t.TempDir(), "missing.json"))

	stats := classifier.Stats()
	if stats.Mode != "degraded" {
		t.Fatalf("expected degraded mode, got %q", stats.Mode)
	}

	// Even an obviously construction-like vector must come back Normal.
	label := classifier.Classify([]float64{10, 20, 300, 400, 95})
	if label != LabelNormal {
		t.Fatalf("degraded classifier returned %s, expected %s", label, LabelNormal)
	}
}

func TestLoadClassifierDegradesOnCorruptArtifact(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	classifier := LoadClassifier(path)
	if classifier.Stats().Mode != "degraded" {
		t.Fatal("expected degraded mode for corrupt artifact")
	}
}

func TestArtifactValidateRejectsWrongShape(t *testing.T) {
	t.Parallel()

	mutate := []struct {
		name   string
		mutate func(a *ModelArtifact)
	}{
		{"wrong schema version", func(a *ModelArtifact) { a.SchemaVersion = 99 }},
		{"missing feature", func(a *ModelArtifact) { a.FeatureOrder = a.FeatureOrder[:4] }},
		{"reordered features", func(a *ModelArtifact) {
			a.FeatureOrder[0], a.FeatureOrder[4] = a.FeatureOrder[4], a.FeatureOrder[0]
		}},
		{"renamed label", func(a *ModelArtifact) { a.Labels[1] = "gridlock" }},
		{"no trees", func(a *ModelArtifact) { a.Forest.Trees = nil }},
		{"wrong class count", func(a *ModelArtifact) { a.Forest.Classes = 7 }},
	}

	for _, tc := range mutate {
		t.Run(tc.name, func(t *testing.T) {
			artifact := smallTrainedArtifact(t)
			tc.mutate(artifact)
			if err := artifact.Validate(); err == nil {
				t.Fatal("expected validation to reject mutated artifact")
			}
		})
	}
}

func TestArtifactSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	artifact := smallTrainedArtifact(t)
	path := filepath.Join(t.TempDir(), "model", "activity_model.json")

	if err := SaveArtifact(artifact, path); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}

	loaded, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact failed: %v", err)
	}

	probes := [][]float64{
		{10, 20, 50, 60, 50},
		{10, 20, 300, 400, 95},
		{5, 30, 200, 100, 75},
	}
	for _, probe := range probes {
		if got, want := loaded.Forest.Predict(probe), artifact.Forest.Predict(probe); got != want {
			t.Fatalf("loaded model predicts %d for %v, original predicted %d", got, probe, want)
		}
	}

	classifier := LoadClassifier(path)
	stats := classifier.Stats()
	if stats.Mode != "trained" {
		t.Fatalf("expected trained mode after round trip, got %q", stats.Mode)
	}
	if stats.TreeCount != len(artifact.Forest.Trees) {
		t.Fatalf("stats report %d trees, expected %d", stats.TreeCount, len(artifact.Forest.Trees))
	}
}

func TestTrainedClassifierRejectsWrongWidthVector(t *testing.T) {
	t.Parallel()

	classifier, err := NewTrainedClassifier(smallTrainedArtifact(t))
	if err != nil {
		t.Fatalf("NewTrainedClassifier failed: %v", err)
	}

	if label := classifier.Classify([]float64{1, 2, 3}); label != LabelNormal {
		t.Fatalf("short vector classified as %s, expected fail-open %s", label, LabelNormal)
	}
}
