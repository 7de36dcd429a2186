package classifier

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nutrisense/api/internal/domain/nutrition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockArtifact is a mock implementation of the classifier artifact
type MockArtifact struct {
	mock.Mock
	order []string
	codes map[string]map[string]float64
}

func newMockArtifact() *MockArtifact {
	return &MockArtifact{
		order: nutrition.FeatureOrder,
		codes: map[string]map[string]float64{
			"FAVC":   {"no": 0, "yes": 1},
			"CAEC":   {"Always": 0, "Frequently": 1, "Sometimes": 2, "no": 3},
			"SMOKE":  {"no": 0, "yes": 1},
			"CALC":   {"Always": 0, "Frequently": 1, "Sometimes": 2, "no": 3},
			"MTRANS": {"Automobile": 0, "Bicycle": 1, "Motorbike": 2, "Public_Transportation": 3, "Walking": 4},
			"SCC":    {"no": 0, "yes": 1},
		},
	}
}

func (m *MockArtifact) Encode(field, value string) (float64, error) {
	code, ok := m.codes[field][value]
	if !ok {
		return 0, fmt.Errorf("%s=%q: %w", field, value, nutrition.ErrUnknownCategory)
	}
	return code, nil
}

func (m *MockArtifact) Predict(ctx context.Context, features []float64) (int, error) {
	args := m.Called(ctx, features)
	return args.Int(0), args.Error(1)
}

func (m *MockArtifact) Decode(index int) (nutrition.RiskLabel, error) {
	args := m.Called(index)
	return args.Get(0).(nutrition.RiskLabel), args.Error(1)
}

func (m *MockArtifact) FeatureOrder() []string {
	return m.order
}

func testRecord() nutrition.FeatureRecord {
	return nutrition.FeatureRecord{
		Age:    25,
		Height: 1.75,
		Weight: 60,
		FCVC:   1,
		FAVC:   nutrition.No,
		NCP:    2,
		CAEC:   nutrition.FrequencyNo,
		CH2O:   1,
		FAF:    0,
		TUE:    0,
		SMOKE:  nutrition.No,
		CALC:   nutrition.FrequencyNo,
		MTRANS: nutrition.TransportAutomobile,
		SCC:    nutrition.No,
	}
}

func TestClassify(t *testing.T) {
	artifact := newMockArtifact()
	want := []float64{25, 1.75, 60, 1, 0, 2, 3, 1, 0, 0, 0, 3, 0, 0}
	artifact.On("Predict", mock.Anything, want).Return(2, nil)
	artifact.On("Decode", 2).Return(nutrition.RiskUnderNutrition, nil)

	c := NewRiskClassifier(artifact, zaptest.NewLogger(t))
	label, err := c.Classify(context.Background(), testRecord())

	require.NoError(t, err)
	assert.Equal(t, nutrition.RiskUnderNutrition, label)
	artifact.AssertExpectations(t)
}

func TestEncode_FollowsArtifactOrder(t *testing.T) {
	artifact := newMockArtifact()
	artifact.order = []string{"MTRANS", "Weight", "Age"}

	c := NewRiskClassifier(artifact, zaptest.NewLogger(t))
	features, err := c.Encode(testRecord())

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 60, 25}, features)
}

func TestEncode_UnknownCategory(t *testing.T) {
	artifact := newMockArtifact()
	delete(artifact.codes["MTRANS"], "Automobile")

	c := NewRiskClassifier(artifact, zaptest.NewLogger(t))
	_, err := c.Classify(context.Background(), testRecord())

	var cerr *nutrition.ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, nutrition.UnknownCategory, cerr.Kind)
	assert.Equal(t, "MTRANS", cerr.Field)
	assert.Equal(t, "Automobile", cerr.Value)
	assert.ErrorIs(t, err, nutrition.ErrUnknownCategory)

	verr := cerr.AsValidationError()
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "MTRANS", verr.Fields[0].Field)
	artifact.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
}

func TestEncode_UnknownFeature(t *testing.T) {
	artifact := newMockArtifact()
	artifact.order = []string{"Age", "Gender"}

	c := NewRiskClassifier(artifact, zaptest.NewLogger(t))
	_, err := c.Encode(testRecord())

	var cerr *nutrition.ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, nutrition.ModelFailure, cerr.Kind)
}

func TestClassify_ModelFailure(t *testing.T) {
	artifact := newMockArtifact()
	artifact.On("Predict", mock.Anything, mock.Anything).Return(0, errors.New("model crashed"))

	c := NewRiskClassifier(artifact, zaptest.NewLogger(t))
	_, err := c.Classify(context.Background(), testRecord())

	var cerr *nutrition.ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, nutrition.ModelFailure, cerr.Kind)
	assert.Contains(t, err.Error(), "model crashed")
}

func TestClassify_UndecodableClass(t *testing.T) {
	artifact := newMockArtifact()
	artifact.On("Predict", mock.Anything, mock.Anything).Return(7, nil)
	artifact.On("Decode", 7).Return(nutrition.RiskLabel(""), errors.New("class index 7 out of range"))

	c := NewRiskClassifier(artifact, zaptest.NewLogger(t))
	_, err := c.Classify(context.Background(), testRecord())

	var cerr *nutrition.ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, nutrition.ModelFailure, cerr.Kind)
}
