// Package classifier adapts the pre-trained risk model to the domain. It
// encodes a validated FeatureRecord in training column order, runs the model
// and decodes the predicted class back to a RiskLabel.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/nutrisense/api/internal/ports/outbound"
	"go.uber.org/zap"
)

// RiskClassifier predicts the nutrition risk category of a feature record
type RiskClassifier struct {
	artifact outbound.ClassifierArtifact
	logger   *zap.Logger
}

// NewRiskClassifier creates a new risk classifier adapter
func NewRiskClassifier(artifact outbound.ClassifierArtifact, logger *zap.Logger) *RiskClassifier {
	return &RiskClassifier{
		artifact: artifact,
		logger:   logger.Named("classifier"),
	}
}

// Classify returns the predicted risk label. Failures are always
// *nutrition.ClassificationError.
func (c *RiskClassifier) Classify(ctx context.Context, record nutrition.FeatureRecord) (nutrition.RiskLabel, error) {
	features, err := c.Encode(record)
	if err != nil {
		return "", err
	}

	index, err := c.artifact.Predict(ctx, features)
	if err != nil {
		c.logger.Error("Model invocation failed", zap.Error(err))
		return "", &nutrition.ClassificationError{Kind: nutrition.ModelFailure, Cause: err}
	}

	label, err := c.artifact.Decode(index)
	if err != nil {
		c.logger.Error("Predicted class could not be decoded",
			zap.Int("class_index", index),
			zap.Error(err),
		)
		return "", &nutrition.ClassificationError{Kind: nutrition.ModelFailure, Cause: err}
	}

	c.logger.Debug("Record classified", zap.String("nutrition_risk", string(label)))
	return label, nil
}

// Encode builds the numeric feature vector in the artifact's column order
func (c *RiskClassifier) Encode(record nutrition.FeatureRecord) ([]float64, error) {
	order := c.artifact.FeatureOrder()
	features := make([]float64, 0, len(order))

	for _, field := range order {
		if value, ok := record.Category(field); ok {
			code, err := c.artifact.Encode(field, value)
			if err != nil {
				if errors.Is(err, nutrition.ErrUnknownCategory) {
					return nil, &nutrition.ClassificationError{
						Kind:  nutrition.UnknownCategory,
						Field: field,
						Value: value,
						Cause: err,
					}
				}
				return nil, &nutrition.ClassificationError{Kind: nutrition.ModelFailure, Cause: err}
			}
			features = append(features, code)
			continue
		}

		value, ok := record.Numeric(field)
		if !ok {
			return nil, &nutrition.ClassificationError{
				Kind:  nutrition.ModelFailure,
				Cause: fmt.Errorf("model expects unknown feature %q", field),
			}
		}
		features = append(features, value)
	}

	return features, nil
}
