package regression

import "sort"

// minCategorySupport smooths the gradient ratio used to order categories.
const minCategorySupport = 10

type node struct {
	leaf  bool
	value float64

	feature int
	// numeric: bins <= threshold go left
	threshold int
	// categorical: catLeft[bin] goes left
	catLeft []bool
	// unseen categories follow defaultLeft
	defaultLeft bool

	left, right int
}

type tree struct {
	nodes []node
}

func (t *tree) predict(row func(f int) int) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.leaf {
			return n.value
		}
		if goesLeft(n, row(n.feature)) {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// goesLeft routes a binned value. The missing bin lies past every
// non-missing bin, so it always goes right.
func goesLeft(n *node, b int) bool {
	if n.catLeft != nil {
		if b == unknownBin {
			return n.defaultLeft
		}
		return b < len(n.catLeft) && n.catLeft[b]
	}
	return b <= n.threshold
}

type binStat struct {
	g, h float64
	n    int
}

type splitInfo struct {
	found       bool
	gain        float64
	feature     int
	threshold   int
	catLeft     []bool
	defaultLeft bool
}

type leafCandidate struct {
	node    int
	samples []int
	hist    [][]binStat
	sumG    float64
	sumH    float64
	split   splitInfo
}

// grower builds one tree on binned data for the current gradients.
type grower struct {
	binned      [][]int32
	nBins       []int
	categorical []bool
	grad, hess  []float64

	maxLeafNodes   int
	minSamplesLeaf int
	l2             float64
	shrinkage      float64
}

func (g *grower) grow(samples []int) *tree {
	t := &tree{nodes: []node{{leaf: true}}}

	root := &leafCandidate{node: 0, samples: samples}
	root.hist = g.histogram(samples)
	root.sumG, root.sumH = sumStats(root.hist[0])
	g.findSplit(root)

	open := []*leafCandidate{root}
	leaves := 1

	for leaves < g.maxLeafNodes {
		best := -1
		for i, c := range open {
			if c.split.found && (best < 0 || c.split.gain > open[best].split.gain) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		parent := open[best]
		open = append(open[:best], open[best+1:]...)

		left, right := g.splitLeaf(t, parent)
		leaves++
		for _, c := range []*leafCandidate{left, right} {
			if len(c.samples) >= 2*g.minSamplesLeaf {
				g.findSplit(c)
			}
			open = append(open, c)
		}
		parent.hist = nil
	}

	for _, c := range open {
		t.nodes[c.node].value = -g.shrinkage * c.sumG / (c.sumH + g.l2)
	}
	return t
}

// splitLeaf turns parent into an internal node and returns its children.
// The smaller child's histogram is built directly and the larger one is
// derived by subtraction from the parent.
func (g *grower) splitLeaf(t *tree, parent *leafCandidate) (*leafCandidate, *leafCandidate) {
	s := parent.split
	probe := &node{threshold: s.threshold, catLeft: s.catLeft, defaultLeft: s.defaultLeft}
	col := g.binned[s.feature]

	var leftIdx, rightIdx []int
	for _, i := range parent.samples {
		if goesLeft(probe, int(col[i])) {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}

	li, ri := len(t.nodes), len(t.nodes)+1
	t.nodes = append(t.nodes, node{leaf: true}, node{leaf: true})
	t.nodes[parent.node] = node{
		feature:     s.feature,
		threshold:   s.threshold,
		catLeft:     s.catLeft,
		defaultLeft: s.defaultLeft,
		left:        li,
		right:       ri,
	}

	left := &leafCandidate{node: li, samples: leftIdx}
	right := &leafCandidate{node: ri, samples: rightIdx}
	small, large := left, right
	if len(rightIdx) < len(leftIdx) {
		small, large = right, left
	}
	small.hist = g.histogram(small.samples)
	large.hist = subtract(parent.hist, small.hist)
	for _, c := range []*leafCandidate{left, right} {
		c.sumG, c.sumH = sumStats(c.hist[0])
	}
	return left, right
}

func (g *grower) histogram(samples []int) [][]binStat {
	hist := make([][]binStat, len(g.binned))
	for f, col := range g.binned {
		h := make([]binStat, g.nBins[f]+1)
		for _, i := range samples {
			b := &h[col[i]]
			b.g += g.grad[i]
			b.h += g.hess[i]
			b.n++
		}
		hist[f] = h
	}
	return hist
}

func subtract(parent, child [][]binStat) [][]binStat {
	out := make([][]binStat, len(parent))
	for f := range parent {
		h := make([]binStat, len(parent[f]))
		for b := range h {
			h[b] = binStat{
				g: parent[f][b].g - child[f][b].g,
				h: parent[f][b].h - child[f][b].h,
				n: parent[f][b].n - child[f][b].n,
			}
		}
		out[f] = h
	}
	return out
}

func sumStats(h []binStat) (g, hess float64) {
	for _, b := range h {
		g += b.g
		hess += b.h
	}
	return g, hess
}

func (g *grower) score(sumG, sumH float64) float64 {
	return sumG * sumG / (sumH + g.l2)
}

func (g *grower) findSplit(c *leafCandidate) {
	n := len(c.samples)
	parentScore := g.score(c.sumG, c.sumH)
	best := splitInfo{}

	consider := func(s splitInfo, gl, hl float64, nl int) {
		nr := n - nl
		if nl < g.minSamplesLeaf || nr < g.minSamplesLeaf {
			return
		}
		gain := g.score(gl, hl) + g.score(c.sumG-gl, c.sumH-hl) - parentScore
		if gain > 1e-12 && (!best.found || gain > best.gain) {
			s.found = true
			s.gain = gain
			best = s
		}
	}

	for f, h := range c.hist {
		nb := g.nBins[f]
		if g.categorical[f] {
			g.scanCategorical(f, h[:nb], consider)
			continue
		}
		var gl, hl float64
		nl := 0
		for b := 0; b < nb-1; b++ {
			gl += h[b].g
			hl += h[b].h
			nl += h[b].n
			if h[b].n == 0 {
				continue
			}
			consider(splitInfo{feature: f, threshold: b}, gl, hl, nl)
		}
	}
	c.split = best
}

// scanCategorical orders the populated categories by their smoothed
// gradient ratio and tries every prefix as the left set.
func (g *grower) scanCategorical(f int, h []binStat, consider func(splitInfo, float64, float64, int)) {
	var cats []int
	for b, s := range h {
		if s.n > 0 {
			cats = append(cats, b)
		}
	}
	if len(cats) < 2 {
		return
	}
	sort.SliceStable(cats, func(i, j int) bool {
		a, b := h[cats[i]], h[cats[j]]
		return a.g/(a.h+minCategorySupport) < b.g/(b.h+minCategorySupport)
	})

	total := 0
	for _, st := range h {
		total += st.n
	}
	var gl, hl float64
	nl := 0
	for k := 0; k < len(cats)-1; k++ {
		s := h[cats[k]]
		gl += s.g
		hl += s.h
		nl += s.n
		left := make([]bool, len(h))
		for _, b := range cats[:k+1] {
			left[b] = true
		}
		consider(splitInfo{
			feature:     f,
			catLeft:     left,
			defaultLeft: nl >= total-nl,
		}, gl, hl, nl)
	}
}
