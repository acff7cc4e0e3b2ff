package regression

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// autoEarlyStoppingSamples is the sample count above which "auto" early
// stopping switches on.
const autoEarlyStoppingSamples = 10000

// HistGradientBoosting is a gradient-boosted ensemble of regression trees
// grown on binned features with squared-error loss.
type HistGradientBoosting struct {
	opts Options

	mapper   *binMapper
	baseline float64
	trees    []*tree
	fitted   bool

	// ValidationScores holds the negative half squared error on the held
	// out samples after each iteration when early stopping is active,
	// starting with the baseline.
	ValidationScores []float64
}

func NewHistGradientBoosting(opts Options) (*HistGradientBoosting, error) {
	def := DefaultOptions()
	if opts.MaxLeafNodes == 0 {
		opts.MaxLeafNodes = def.MaxLeafNodes
	}
	if opts.MinSamplesLeaf == 0 {
		opts.MinSamplesLeaf = def.MinSamplesLeaf
	}
	if opts.MaxBins == 0 {
		opts.MaxBins = def.MaxBins
	}
	if opts.NIterNoChange == 0 {
		opts.NIterNoChange = def.NIterNoChange
	}
	if opts.Tol == 0 {
		opts.Tol = def.Tol
	}
	if opts.EarlyStopping == "" {
		opts.EarlyStopping = def.EarlyStopping
	}

	switch {
	case opts.LearningRate <= 0:
		return nil, fmt.Errorf("regression: learning rate must be positive, got %v", opts.LearningRate)
	case opts.MaxIter < 1:
		return nil, fmt.Errorf("regression: max iterations must be at least 1, got %d", opts.MaxIter)
	case opts.MaxLeafNodes < 2:
		return nil, fmt.Errorf("regression: max leaf nodes must be at least 2, got %d", opts.MaxLeafNodes)
	case opts.MaxBins < 2 || opts.MaxBins > 255:
		return nil, fmt.Errorf("regression: max bins must be in [2, 255], got %d", opts.MaxBins)
	case opts.L2Regularization < 0:
		return nil, fmt.Errorf("regression: l2 regularization must be non-negative, got %v", opts.L2Regularization)
	case opts.ValidationFraction < 0 || opts.ValidationFraction >= 1:
		return nil, fmt.Errorf("regression: validation fraction must be in [0, 1), got %v", opts.ValidationFraction)
	}
	switch opts.EarlyStopping {
	case "auto", "on", "off":
	default:
		return nil, fmt.Errorf("regression: early stopping must be auto, on or off, got %q", opts.EarlyStopping)
	}
	return &HistGradientBoosting{opts: opts}, nil
}

// NIter is the number of boosting iterations actually run.
func (m *HistGradientBoosting) NIter() int { return len(m.trees) }

func (m *HistGradientBoosting) earlyStopping(n int) bool {
	switch m.opts.EarlyStopping {
	case "on":
		return true
	case "off":
		return false
	}
	return n > autoEarlyStoppingSamples
}

func (m *HistGradientBoosting) Fit(X [][]float64, y []float64) error {
	nFeatures, err := checkMatrix(X)
	if err != nil {
		return err
	}
	if err := checkTarget(X, y); err != nil {
		return err
	}
	if c := m.opts.Categorical; c != nil && len(c) != nFeatures {
		return fmt.Errorf("regression: %d categorical flags for %d features", len(c), nFeatures)
	}

	trainX, trainY, valX, valY := X, y, [][]float64(nil), []float64(nil)
	stopping := m.earlyStopping(len(X)) && m.opts.ValidationFraction > 0
	if stopping {
		trainX, trainY, valX, valY = m.holdOut(X, y)
		if len(valX) == 0 || len(trainX) == 0 {
			trainX, trainY, valX, valY = X, y, nil, nil
			stopping = false
		}
	}

	mapper, err := fitBinMapper(trainX, m.opts.Categorical, m.opts.MaxBins)
	if err != nil {
		return err
	}
	m.mapper = mapper
	m.trees = nil
	m.ValidationScores = nil

	binned := mapper.transform(trainX)
	n := len(trainX)
	m.baseline = stat.Mean(trainY, nil)

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = m.baseline
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := range hess {
		hess[i] = 1
	}
	samples := make([]int, n)
	for i := range samples {
		samples[i] = i
	}

	var valBinned [][]int32
	var valRaw []float64
	if stopping {
		valBinned = mapper.transform(valX)
		valRaw = make([]float64, len(valX))
		for i := range valRaw {
			valRaw[i] = m.baseline
		}
		m.ValidationScores = append(m.ValidationScores, negHalfSquaredError(valY, valRaw))
	}

	g := &grower{
		binned:         binned,
		nBins:          mapper.nBins,
		categorical:    mapper.categorical,
		grad:           grad,
		hess:           hess,
		maxLeafNodes:   m.opts.MaxLeafNodes,
		minSamplesLeaf: m.opts.MinSamplesLeaf,
		l2:             m.opts.L2Regularization,
		shrinkage:      m.opts.LearningRate,
	}

	for iter := 0; iter < m.opts.MaxIter; iter++ {
		for i := range grad {
			grad[i] = raw[i] - trainY[i]
		}
		t := g.grow(samples)
		m.trees = append(m.trees, t)

		for i := range raw {
			raw[i] += t.predict(func(f int) int { return int(binned[f][i]) })
		}
		if stopping {
			for i := range valRaw {
				valRaw[i] += t.predict(func(f int) int { return int(valBinned[f][i]) })
			}
			m.ValidationScores = append(m.ValidationScores, negHalfSquaredError(valY, valRaw))
			if m.shouldStop() {
				break
			}
		}
	}
	m.fitted = true
	return nil
}

// shouldStop reports whether none of the last NIterNoChange scores beat
// the score before them by more than Tol.
func (m *HistGradientBoosting) shouldStop() bool {
	k := m.opts.NIterNoChange
	scores := m.ValidationScores
	if len(scores) <= k {
		return false
	}
	reference := scores[len(scores)-k-1]
	for _, s := range scores[len(scores)-k:] {
		if s > reference+m.opts.Tol {
			return false
		}
	}
	return true
}

// holdOut shuffles sample indices with the configured seed and reserves
// ValidationFraction of them, rounded up, for early stopping.
func (m *HistGradientBoosting) holdOut(X [][]float64, y []float64) (trX [][]float64, trY []float64, vaX [][]float64, vaY []float64) {
	n := len(X)
	nVal := int(math.Ceil(m.opts.ValidationFraction * float64(n)))
	rng := rand.New(rand.NewPCG(uint64(m.opts.Seed), 0x9e3779b97f4a7c15))
	perm := rng.Perm(n)
	for k, i := range perm {
		if k < nVal {
			vaX = append(vaX, X[i])
			vaY = append(vaY, y[i])
		} else {
			trX = append(trX, X[i])
			trY = append(trY, y[i])
		}
	}
	return trX, trY, vaX, vaY
}

func (m *HistGradientBoosting) Predict(X [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if len(X) == 0 {
		return []float64{}, nil
	}
	width, err := checkMatrix(X)
	if err != nil {
		return nil, err
	}
	if width != len(m.mapper.nBins) {
		return nil, fmt.Errorf("regression: got %d features, model was fitted with %d", width, len(m.mapper.nBins))
	}

	out := make([]float64, len(X))
	row := make([]int, width)
	for i, x := range X {
		for f, v := range x {
			row[f] = m.mapper.bin(f, v)
		}
		sum := m.baseline
		for _, t := range m.trees {
			sum += t.predict(func(f int) int { return row[f] })
		}
		out[i] = sum
	}
	return out, nil
}

func negHalfSquaredError(y, pred []float64) float64 {
	diff := make([]float64, len(y))
	floats.SubTo(diff, pred, y)
	return -0.5 * floats.Dot(diff, diff) / float64(len(y))
}
