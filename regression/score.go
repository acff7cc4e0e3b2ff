package regression

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// R2 is the coefficient of determination of pred against truth. It is NaN
// for an empty sample.
func R2(truth, pred []float64) float64 {
	if len(truth) == 0 || len(truth) != len(pred) {
		return math.NaN()
	}
	return stat.RSquaredFrom(pred, truth, nil)
}

// Score predicts X with m and returns the R² against y.
func Score(m Regressor, X [][]float64, y []float64) (float64, error) {
	if len(X) == 0 {
		return math.NaN(), nil
	}
	pred, err := m.Predict(X)
	if err != nil {
		return math.NaN(), err
	}
	return R2(y, pred), nil
}
