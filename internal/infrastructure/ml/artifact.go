// Package ml loads the pre-trained nutrition risk classifier. The artifact is
// an exported tree ensemble together with its categorical encoders and its
// target label table; it is read once at start-up and never mutated.
package ml

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/nutrisense/api/internal/domain/nutrition"
	"go.uber.org/zap"
)

// leaf marks a node without children, matching the exporter's convention
const leaf = -1

// Node is one node of a flattened decision tree. Samples with
// x[Feature] <= Threshold go Left.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// Tree is a flattened decision tree rooted at index 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Artifact is the on-disk classifier document
type Artifact struct {
	Version         string                        `json:"version"`
	Features        []string                      `json:"feature_order"`
	FeatureEncoders map[string]map[string]float64 `json:"feature_encoders"`
	TargetClasses   []string                      `json:"target_classes"`
	Trees           []Tree                        `json:"trees"`
}

// Classifier serves predictions from a loaded artifact. It is safe for
// concurrent use because nothing is written after Load returns.
type Classifier struct {
	artifact Artifact
	labels   []nutrition.RiskLabel
}

// Load reads and validates an artifact file
func Load(path string, logger *zap.Logger) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load model artifact %s: %w", path, err)
	}

	logger.Info("Classifier artifact loaded",
		zap.String("path", path),
		zap.String("version", c.artifact.Version),
		zap.Int("trees", len(c.artifact.Trees)),
		zap.Int("classes", len(c.labels)),
	)
	return c, nil
}

// Parse decodes and validates an artifact document
func Parse(data []byte) (*Classifier, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return New(a)
}

// New validates an artifact and wraps it in a Classifier
func New(a Artifact) (*Classifier, error) {
	if len(a.Features) == 0 {
		return nil, fmt.Errorf("artifact has no feature_order")
	}
	present := make(map[string]bool, len(a.Features))
	for _, f := range a.Features {
		present[f] = true
		if nutrition.IsCategorical(f) && len(a.FeatureEncoders[f]) == 0 {
			return nil, fmt.Errorf("artifact has no encoder for categorical field %s", f)
		}
	}
	for _, f := range nutrition.FeatureOrder {
		if !present[f] {
			return nil, fmt.Errorf("artifact feature_order is missing %s", f)
		}
	}

	if len(a.TargetClasses) == 0 {
		return nil, fmt.Errorf("artifact has no target_classes")
	}
	labels := make([]nutrition.RiskLabel, len(a.TargetClasses))
	for i, cls := range a.TargetClasses {
		l, err := nutrition.ParseRiskLabel(cls)
		if err != nil {
			return nil, fmt.Errorf("target class %d: %w", i, err)
		}
		labels[i] = l
	}

	if len(a.Trees) == 0 {
		return nil, fmt.Errorf("artifact has no trees")
	}
	for i, t := range a.Trees {
		if err := validateTree(t, len(a.Features), len(labels)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}

	return &Classifier{artifact: a, labels: labels}, nil
}

// validateTree checks index bounds; children must follow their parent so a
// walk always terminates
func validateTree(t Tree, nFeatures, nClasses int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Left == leaf || n.Right == leaf {
			if n.Left != n.Right {
				return fmt.Errorf("node %d has a single child", i)
			}
			if len(n.Value) != nClasses {
				return fmt.Errorf("leaf %d has %d class values, want %d", i, len(n.Value), nClasses)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on unknown feature %d", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has out-of-order children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// FeatureOrder returns the training column order
func (c *Classifier) FeatureOrder() []string {
	out := make([]string, len(c.artifact.Features))
	copy(out, c.artifact.Features)
	return out
}

// Version returns the artifact version string
func (c *Classifier) Version() string {
	return c.artifact.Version
}

// Encode maps a categorical value to its trained code
func (c *Classifier) Encode(field, value string) (float64, error) {
	table, ok := c.artifact.FeatureEncoders[field]
	if !ok {
		return 0, fmt.Errorf("no encoder for field %s: %w", field, nutrition.ErrUnknownCategory)
	}
	code, ok := table[value]
	if !ok {
		return 0, fmt.Errorf("field %s value %q: %w", field, value, nutrition.ErrUnknownCategory)
	}
	return code, nil
}

// Predict sums the normalised leaf distributions of every tree and returns
// the arg-max class index; ties go to the lowest index
func (c *Classifier) Predict(ctx context.Context, features []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(features) != len(c.artifact.Features) {
		return 0, fmt.Errorf("got %d features, model expects %d", len(features), len(c.artifact.Features))
	}

	votes := make([]float64, len(c.labels))
	for _, t := range c.artifact.Trees {
		node := t.Nodes[0]
		for node.Left != leaf {
			if features[node.Feature] <= node.Threshold {
				node = t.Nodes[node.Left]
			} else {
				node = t.Nodes[node.Right]
			}
		}

		var total float64
		for _, v := range node.Value {
			total += v
		}
		if total == 0 {
			continue
		}
		for i, v := range node.Value {
			votes[i] += v / total
		}
	}

	best := 0
	for i := 1; i < len(votes); i++ {
		if votes[i] > votes[best] {
			best = i
		}
	}
	return best, nil
}

// Decode maps a class index to its risk label
func (c *Classifier) Decode(index int) (nutrition.RiskLabel, error) {
	if index < 0 || index >= len(c.labels) {
		return "", fmt.Errorf("class index %d out of range [0, %d)", index, len(c.labels))
	}
	return c.labels[index], nil
}
