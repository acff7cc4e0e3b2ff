package regression

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Linear is an ordinary least squares model with an intercept. Collinear
// or constant columns are resolved with the minimum-norm solution.
type Linear struct {
	Coef      []float64
	Intercept float64
	fitted    bool
}

func NewLinear() *Linear { return &Linear{} }

func (m *Linear) Fit(X [][]float64, y []float64) error {
	p, err := checkMatrix(X)
	if err != nil {
		return err
	}
	if err := checkTarget(X, y); err != nil {
		return err
	}
	n := len(X)

	means := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		means[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i, row := range X {
		for j, v := range row {
			a.Set(i, j, v-means[j])
		}
		b.SetVec(i, y[i]-yMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return errors.New("regression: singular value decomposition failed")
	}
	rcond := math.Nextafter(1, 2) - 1
	rcond *= float64(max(n, p))
	rank := svd.Rank(rcond)

	coef := make([]float64, p)
	if rank > 0 {
		var beta mat.VecDense
		svd.SolveVecTo(&beta, b, rank)
		for j := range coef {
			coef[j] = beta.AtVec(j)
		}
	}

	intercept := yMean
	for j, c := range coef {
		intercept -= c * means[j]
	}
	m.Coef = coef
	m.Intercept = intercept
	m.fitted = true
	return nil
}

func (m *Linear) Predict(X [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.Coef) {
			return nil, errors.New("regression: feature count does not match the fitted model")
		}
		v := m.Intercept
		for j, x := range row {
			v += m.Coef[j] * x
		}
		out[i] = v
	}
	return out, nil
}
