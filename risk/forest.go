package risk

// Bagged decision-tree ensemble for activity classification.
//
// The model is deliberately simple: a forest of depth-bounded CART trees,
// each fit on a bootstrap resample of the training set, voting by majority
// at inference time. Splits minimise Gini impurity and thresholds sit at the
// midpoint between adjacent observed values. The bounded depth keeps the
// trees from memorising the synthetic generator sample by sample.

import (
	"math/rand"
	"sort"
)

// TreeNode is a single node of a fitted decision tree. Leaves have no
// children and carry the predicted class; internal nodes route samples with
// feature <= threshold to the left child.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
	Class     int       `json:"class"`
}

func (n *TreeNode) isLeaf() bool {
	return n.Left == nil && n.Right == nil
}

func (n *TreeNode) predict(features []float64) int {
	node := n
	for !node.isLeaf() {
		if features[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Class
}

// Forest is a bagged ensemble of decision trees over a fixed class set.
type Forest struct {
	Trees   []*TreeNode `json:"trees"`
	Classes int         `json:"classes"`
}

// Predict returns the majority-vote class for the feature vector.
// Ties resolve to the lowest class index for determinism.
func (f *Forest) Predict(features []float64) int {
	votes := make([]int, f.Classes)
	for _, tree := range f.Trees {
		class := tree.predict(features)
		if class >= 0 && class < f.Classes {
			votes[class]++
		}
	}
	return argmax(votes)
}

// PredictLabel maps the majority-vote class to its activity label.
func (f *Forest) PredictLabel(features []float64) ActivityLabel {
	return labelFromClass(f.Predict(features))
}

// TrainForest fits cfg.Trees bootstrap trees on the labelled samples.
// The supplied rng makes training fully deterministic for a given seed.
func TrainForest(x [][]float64, y []int, cfg TrainingConfig, rng *rand.Rand) *Forest {
	n := len(x)
	trees := make([]*TreeNode, 0, cfg.Trees)

	for t := 0; t < cfg.Trees; t++ {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = rng.Intn(n)
		}
		trees = append(trees, fitTree(x, y, indices, 0, cfg))
	}

	return &Forest{Trees: trees, Classes: len(Labels)}
}

func fitTree(x [][]float64, y []int, indices []int, depth int, cfg TrainingConfig) *TreeNode {
	counts := classCounts(y, indices)
	majority := argmax(counts)

	if depth >= cfg.MaxDepth || len(indices) < cfg.MinSplit || isPure(counts) {
		return &TreeNode{Class: majority}
	}

	feature, threshold, ok := bestSplit(x, y, indices, counts)
	if !ok {
		return &TreeNode{Class: majority}
	}

	var left, right []int
	for _, idx := range indices {
		if x[idx][feature] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &TreeNode{Class: majority}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      fitTree(x, y, left, depth+1, cfg),
		Right:     fitTree(x, y, right, depth+1, cfg),
		Class:     majority,
	}
}

type splitCandidate struct {
	value float64
	class int
}

// bestSplit scans every feature for the threshold with the lowest weighted
// Gini impurity. Returns ok=false when no split improves on the parent node.
func bestSplit(x [][]float64, y []int, indices []int, parentCounts []int) (int, float64, bool) {
	total := len(indices)
	parentGini := giniFromCounts(parentCounts, total)

	bestFeature := -1
	bestThreshold := 0.0
	bestGini := parentGini

	candidates := make([]splitCandidate, total)
	featureCount := len(x[indices[0]])

	for feature := 0; feature < featureCount; feature++ {
		for i, idx := range indices {
			candidates[i] = splitCandidate{value: x[idx][feature], class: y[idx]}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].value < candidates[j].value })

		leftCounts := make([]int, len(parentCounts))
		for i := 0; i < total-1; i++ {
			leftCounts[candidates[i].class]++
			if candidates[i+1].value <= candidates[i].value {
				continue
			}

			nl := i + 1
			nr := total - nl
			weighted := (float64(nl)*giniFromCounts(leftCounts, nl) +
				float64(nr)*giniFromRemainder(parentCounts, leftCounts, nr)) / float64(total)

			if weighted < bestGini-1e-12 {
				bestGini = weighted
				bestFeature = feature
				bestThreshold = (candidates[i].value + candidates[i+1].value) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func classCounts(y []int, indices []int) []int {
	counts := make([]int, len(Labels))
	for _, idx := range indices {
		counts[y[idx]]++
	}
	return counts
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func giniFromCounts(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		sum += p * p
	}
	return 1 - sum
}

func giniFromRemainder(parentCounts, leftCounts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	sum := 0.0
	for i := range parentCounts {
		p := float64(parentCounts[i]-leftCounts[i]) / float64(total)
		sum += p * p
	}
	return 1 - sum
}

func argmax(values []int) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
