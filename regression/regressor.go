package regression

import (
	"errors"
	"fmt"
	"math"
)

// Regressor is a model fitted on a dense feature matrix (one row per sample).
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

const (
	KindGBM    = "gbm"
	KindLinear = "linear"
)

var ErrNotFitted = errors.New("regression: model is not fitted")

// Options configures New. Categorical is indexed like the feature columns;
// it is ignored by the linear model.
type Options struct {
	LearningRate       float64
	MaxIter            int
	MaxLeafNodes       int
	MinSamplesLeaf     int
	MaxBins            int
	L2Regularization   float64
	ValidationFraction float64
	// EarlyStopping is "auto", "on" or "off".
	EarlyStopping string
	NIterNoChange int
	Tol           float64
	Seed          int64
	Categorical   []bool
}

// DefaultOptions mirrors the forecasting defaults: squared error, learning
// rate 0.05, 200 iterations, 15% validation.
func DefaultOptions() Options {
	return Options{
		LearningRate:       0.05,
		MaxIter:            200,
		MaxLeafNodes:       31,
		MinSamplesLeaf:     20,
		MaxBins:            255,
		ValidationFraction: 0.15,
		EarlyStopping:      "auto",
		NIterNoChange:      10,
		Tol:                1e-7,
		Seed:               42,
	}
}

func New(kind string, opts Options) (Regressor, error) {
	switch kind {
	case KindGBM, "":
		return NewHistGradientBoosting(opts)
	case KindLinear:
		return NewLinear(), nil
	default:
		return nil, fmt.Errorf("regression: unknown model %q", kind)
	}
}

func checkMatrix(X [][]float64) (int, error) {
	if len(X) == 0 {
		return 0, errors.New("regression: empty feature matrix")
	}
	width := len(X[0])
	if width == 0 {
		return 0, errors.New("regression: no features")
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("regression: row %d has %d features, want %d", i, len(row), width)
		}
	}
	return width, nil
}

func checkTarget(X [][]float64, y []float64) error {
	if len(X) != len(y) {
		return fmt.Errorf("regression: %d rows but %d targets", len(X), len(y))
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("regression: target %d is not finite", i)
		}
	}
	return nil
}
