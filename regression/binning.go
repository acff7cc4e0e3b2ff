package regression

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// binMapper discretises each feature into at most maxBins bins. Numeric
// features use thresholds between distinct values, or quantiles when there
// are more distinct values than bins. Categorical features get one bin per
// category seen during fit. Missing values map to the extra bin nBins[f].
type binMapper struct {
	categorical []bool
	thresholds  [][]float64
	categories  [][]float64
	nBins       []int
}

const unknownBin = -1

func fitBinMapper(X [][]float64, categorical []bool, maxBins int) (*binMapper, error) {
	nFeatures := len(X[0])
	m := &binMapper{
		categorical: make([]bool, nFeatures),
		thresholds:  make([][]float64, nFeatures),
		categories:  make([][]float64, nFeatures),
		nBins:       make([]int, nFeatures),
	}
	copy(m.categorical, categorical)

	col := make([]float64, 0, len(X))
	for f := 0; f < nFeatures; f++ {
		col = col[:0]
		for _, row := range X {
			if !math.IsNaN(row[f]) {
				col = append(col, row[f])
			}
		}
		sort.Float64s(col)
		distinct := dedupe(col)

		if m.categorical[f] {
			if len(distinct) > maxBins {
				return nil, fmt.Errorf("regression: categorical feature %d has %d categories, max %d", f, len(distinct), maxBins)
			}
			m.categories[f] = distinct
			m.nBins[f] = len(distinct)
			continue
		}

		if len(distinct) <= maxBins {
			thr := make([]float64, 0, len(distinct))
			for i := 1; i < len(distinct); i++ {
				thr = append(thr, (distinct[i-1]+distinct[i])/2)
			}
			m.thresholds[f] = thr
		} else {
			thr := make([]float64, 0, maxBins-1)
			for i := 1; i < maxBins; i++ {
				q := stat.Quantile(float64(i)/float64(maxBins), stat.LinInterp, col, nil)
				if len(thr) == 0 || q > thr[len(thr)-1] {
					thr = append(thr, q)
				}
			}
			m.thresholds[f] = thr
		}
		m.nBins[f] = len(m.thresholds[f]) + 1
	}
	return m, nil
}

// bin maps value v of feature f. Unseen categories give unknownBin.
func (m *binMapper) bin(f int, v float64) int {
	if math.IsNaN(v) {
		return m.nBins[f]
	}
	if m.categorical[f] {
		cats := m.categories[f]
		i := sort.SearchFloat64s(cats, v)
		if i < len(cats) && cats[i] == v {
			return i
		}
		return unknownBin
	}
	return sort.SearchFloat64s(m.thresholds[f], v)
}

// transform returns the binned matrix in feature-major order.
func (m *binMapper) transform(X [][]float64) [][]int32 {
	nFeatures := len(m.nBins)
	out := make([][]int32, nFeatures)
	for f := 0; f < nFeatures; f++ {
		col := make([]int32, len(X))
		for i, row := range X {
			col[i] = int32(m.bin(f, row[f]))
		}
		out[f] = col
	}
	return out
}

func dedupe(sorted []float64) []float64 {
	out := make([]float64, 0, len(sorted))
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			out = append(out, v)
		}
	}
	return out
}
