package main

import (
	"flag"
	"log"
	"math/rand"
	"time"

	"emission-risk/risk"
)

func main() {
	defaults := risk.DefaultTrainingConfig()

	cfg := risk.TrainingConfig{}
	var outputPath string

	flag.IntVar(&cfg.Samples, "samples", defaults.Samples,
		"Number of synthetic training samples to generate")
	flag.IntVar(&cfg.Trees, "trees", defaults.Trees,
		"Number of trees in the ensemble")
	flag.IntVar(&cfg.MaxDepth, "max-depth", defaults.MaxDepth,
		"Maximum tree depth")
	flag.IntVar(&cfg.MinSplit, "min-split", defaults.MinSplit,
		"Minimum samples required to split a node")
	flag.Int64Var(&cfg.Seed, "seed", defaults.Seed,
		"Random seed for the generator and the bootstrap sampling")
	flag.StringVar(&outputPath, "output", risk.DefaultModelPath,
		"Output path for the trained model artifact")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("=== Activity Classifier Training Pipeline ===")
	log.Printf("Samples: %d, trees: %d, max depth: %d, seed: %d\n",
		cfg.Samples, cfg.Trees, cfg.MaxDepth, cfg.Seed)
	log.Printf("Output model: %s\n", outputPath)
	log.Println()

	startTime := time.Now()

	log.Println("Step 1: Generating synthetic sensor data...")
	artifact := risk.TrainActivityModel(cfg)

	log.Println("Step 2: Measuring training accuracy...")
	rng := rand.New(rand.NewSource(cfg.Seed))
	x, y := risk.GenerateSyntheticSamples(cfg.Samples, rng)
	accuracy := risk.EvaluateAccuracy(artifact.Forest, x, y)

	classCounts := make(map[risk.ActivityLabel]int)
	for i := range x {
		classCounts[risk.RuleLabel(x[i])]++
	}

	log.Println("Step 3: Saving model artifact...")
	if err := risk.SaveArtifact(artifact, outputPath); err != nil {
		log.Fatalf("ERROR: Failed to save artifact: %v", err)
	}

	elapsed := time.Since(startTime)

	log.Println()
	log.Println("=== Training Summary ===")
	log.Printf("Training samples: %d\n", cfg.Samples)
	log.Println("Class distribution:")
	for _, label := range risk.Labels {
		log.Printf("  %-20s: %4d samples\n", label, classCounts[label])
	}
	log.Printf("Training accuracy: %.2f%%\n", accuracy*100)
	log.Printf("Total training time: %.2f seconds\n", elapsed.Seconds())
	log.Printf("Model saved to: %s\n", outputPath)
	log.Println()
	log.Println("Training complete!")
}
