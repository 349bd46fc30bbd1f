package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"time"

	"emission-risk/risk"
)

// EvaluationConfig holds evaluation parameters.
type EvaluationConfig struct {
	ModelPath  string
	Samples    int
	Seed       int64
	ReportPath string
}

// ClassMetrics tracks per-label performance.
type ClassMetrics struct {
	Label        string  `json:"label"`
	TotalSamples int     `json:"totalSamples"`
	CorrectCount int     `json:"correctCount"`
	Accuracy     float64 `json:"accuracy"`
}

// EvaluationReport contains the held-out evaluation results.
type EvaluationReport struct {
	Timestamp       time.Time                 `json:"timestamp"`
	ModelPath       string                    `json:"modelPath"`
	TotalSamples    int                       `json:"totalSamples"`
	CorrectCount    int                       `json:"correctCount"`
	OverallAccuracy float64                   `json:"overallAccuracy"`
	ClassMetrics    []ClassMetrics            `json:"classMetrics"`
	ConfusionMatrix map[string]map[string]int `json:"confusionMatrix"`
}

func main() {
	config := parseFlags()

	log.SetFlags(log.Ldate | log.Ltime)
	log.Println("=== Model Evaluation Pipeline ===")
	log.Printf("Model: %s\n", config.ModelPath)
	log.Printf("Held-out samples: %d (seed %d)\n", config.Samples, config.Seed)
	log.Println()

	log.Println("Loading trained model...")
	artifact, err := risk.LoadArtifact(config.ModelPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to load model: %v", err)
	}
	log.Printf("Loaded %d trees (max depth %d, trained on %d samples)\n",
		len(artifact.Forest.Trees), artifact.MaxDepth, artifact.Samples)
	log.Println()

	log.Println("Generating held-out evaluation data...")
	rng := rand.New(rand.NewSource(config.Seed))
	x, y := risk.GenerateSyntheticSamples(config.Samples, rng)

	log.Println("Evaluating model performance...")
	report := evaluateModel(artifact.Forest, x, y, config)

	printEvaluationReport(report)

	if config.ReportPath != "" {
		if err := saveReport(report, config.ReportPath); err != nil {
			log.Printf("WARNING: Failed to save report: %v\n", err)
		} else {
			log.Printf("\nReport saved to: %s\n", config.ReportPath)
		}
	}
}

func parseFlags() EvaluationConfig {
	config := EvaluationConfig{}

	flag.StringVar(&config.ModelPath, "model", risk.DefaultModelPath,
		"Path to trained model artifact")
	flag.IntVar(&config.Samples, "samples", 2000,
		"Number of held-out synthetic samples to evaluate on")
	flag.Int64Var(&config.Seed, "seed", 7,
		"Random seed for the held-out set (use a different seed than training)")
	flag.StringVar(&config.ReportPath, "report", "",
		"Optional path for a JSON evaluation report")
	flag.Parse()

	return config
}

func evaluateModel(forest *risk.Forest, x [][]float64, y []int, config EvaluationConfig) EvaluationReport {
	confusion := make(map[string]map[string]int)
	perClass := make(map[string]*ClassMetrics)
	for _, label := range risk.Labels {
		confusion[string(label)] = make(map[string]int)
		perClass[string(label)] = &ClassMetrics{Label: string(label)}
	}

	correct := 0
	for i := range x {
		trueLabel := string(risk.Labels[y[i]])
		predicted := string(forest.PredictLabel(x[i]))

		confusion[trueLabel][predicted]++
		perClass[trueLabel].TotalSamples++
		if predicted == trueLabel {
			perClass[trueLabel].CorrectCount++
			correct++
		}
	}

	classMetrics := make([]ClassMetrics, 0, len(risk.Labels))
	for _, label := range risk.Labels {
		m := perClass[string(label)]
		if m.TotalSamples > 0 {
			m.Accuracy = float64(m.CorrectCount) / float64(m.TotalSamples)
		}
		classMetrics = append(classMetrics, *m)
	}

	return EvaluationReport{
		Timestamp:       time.Now().UTC(),
		ModelPath:       config.ModelPath,
		TotalSamples:    len(x),
		CorrectCount:    correct,
		OverallAccuracy: float64(correct) / float64(len(x)),
		ClassMetrics:    classMetrics,
		ConfusionMatrix: confusion,
	}
}

func printEvaluationReport(report EvaluationReport) {
	log.Println()
	log.Println("=== Evaluation Summary ===")
	log.Printf("Overall accuracy: %.2f%% (%d/%d)\n",
		report.OverallAccuracy*100, report.CorrectCount, report.TotalSamples)
	log.Println()

	log.Println("Per-class accuracy:")
	for _, m := range report.ClassMetrics {
		log.Printf("  %-20s: %.2f%% (%d/%d)\n",
			m.Label, m.Accuracy*100, m.CorrectCount, m.TotalSamples)
	}
	log.Println()

	log.Println("Confusion matrix (true -> predicted):")
	for _, trueLabel := range risk.Labels {
		row := report.ConfusionMatrix[string(trueLabel)]
		for _, predLabel := range risk.Labels {
			if count := row[string(predLabel)]; count > 0 {
				log.Printf("  %-20s -> %-20s: %d\n", trueLabel, predLabel, count)
			}
		}
	}
}

func saveReport(report EvaluationReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
