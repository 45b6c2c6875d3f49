package cluster

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/custodia-labs/raptor/internal/core/domain"
)

// Reduction tuning defaults.
const (
	// DefaultEpochs is the number of SGD optimisation passes.
	DefaultEpochs = 200

	// DefaultLearningRate is the initial SGD step size.
	DefaultLearningRate = 1.0

	// negativeSamples is the number of repulsive samples per positive edge.
	negativeSamples = 5

	// gradientClip bounds individual gradient components.
	gradientClip = 4.0
)

// ReduceConfig configures a dimensionality reduction run.
type ReduceConfig struct {
	// TargetDim is the output dimensionality. Must be >= 1 and below the
	// input dimensionality.
	TargetDim int

	// Neighbours is the local-neighbourhood size. Clamped to the number
	// of points minus one, so very small inputs still reduce.
	Neighbours int

	// MinDist is the minimum spacing between points in the reduced space.
	MinDist float64

	// Epochs is the number of optimisation passes. Zero means default.
	Epochs int

	// LearningRate is the initial SGD step size. Zero means default.
	LearningRate float64

	// Seed fixes the random source. Runs with the same seed and input
	// produce identical output; otherwise output varies run to run.
	Seed int64
}

// Reduce projects high-dimensional vectors into a low-dimensional space
// while preserving local neighbourhood structure, so that density-based
// clustering over the result is meaningful.
//
// The algorithm follows UMAP: a fuzzy k-nearest-neighbour graph is built
// over the input (with per-point bandwidth calibration), symmetrised,
// and a seeded random layout is optimised by stochastic gradient descent
// with negative sampling.
//
// Fewer than two points is a caller error: there is no neighbourhood
// structure to preserve.
func Reduce(vectors [][]float32, cfg ReduceConfig) ([][]float64, error) {
	n := len(vectors)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 vectors to reduce, got %d", domain.ErrInvalidInput, n)
	}
	dim := len(vectors[0])
	if cfg.TargetDim < 1 {
		return nil, fmt.Errorf("%w: target dimension must be >= 1, got %d", domain.ErrInvalidInput, cfg.TargetDim)
	}
	if cfg.TargetDim >= dim {
		return nil, fmt.Errorf("%w: target dimension %d must be below input dimension %d",
			domain.ErrInvalidInput, cfg.TargetDim, dim)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				domain.ErrInvalidInput, i, len(v), dim)
		}
	}

	points := toFloat64(vectors)

	k := cfg.Neighbours
	if k < 2 {
		k = 2
	}
	if k > n-1 {
		k = n - 1
	}

	epochs := cfg.Epochs
	if epochs <= 0 {
		epochs = DefaultEpochs
	}
	alpha := cfg.LearningRate
	if alpha <= 0 {
		alpha = DefaultLearningRate
	}

	graph := fuzzyNeighbourGraph(points, k)
	a, b := curveParams(cfg.MinDist)

	rng := rand.New(rand.NewSource(cfg.Seed))

	// Random layout init, uniform in [-10, 10] per UMAP convention.
	layout := make([][]float64, n)
	for i := range layout {
		layout[i] = make([]float64, cfg.TargetDim)
		for d := range layout[i] {
			layout[i][d] = rng.Float64()*20 - 10
		}
	}

	optimiseLayout(layout, graph, rng, epochs, alpha, a, b)

	return layout, nil
}

// edge is one weighted connection in the fuzzy neighbour graph.
type edge struct {
	from, to int
	weight   float64
}

// neighbour pairs a point index with its distance from a query point.
type neighbour struct {
	idx  int
	dist float64
}

// fuzzyNeighbourGraph builds the symmetrised fuzzy simplicial set over
// the input points: each point's k nearest neighbours weighted by a
// locally calibrated exponential kernel, then combined with the fuzzy
// union w = u + v - u*v.
func fuzzyNeighbourGraph(points [][]float64, k int) []edge {
	n := len(points)

	// Exact k-nearest neighbours. Quadratic, which is fine at the layer
	// sizes the tree builder feeds in.
	nns := make([][]neighbour, n)
	for i := range points {
		candidates := make([]neighbour, 0, n-1)
		for j := range points {
			if i == j {
				continue
			}
			candidates = append(candidates, neighbour{idx: j, dist: floats.Distance(points[i], points[j], 2)})
		}
		sort.Slice(candidates, func(x, y int) bool {
			if candidates[x].dist != candidates[y].dist {
				return candidates[x].dist < candidates[y].dist
			}
			return candidates[x].idx < candidates[y].idx
		})
		nns[i] = candidates[:k]
	}

	// Per-point calibration: rho is the distance to the nearest
	// neighbour, sigma is solved so the smoothed neighbourhood has an
	// effective size of log2(k).
	directed := make(map[[2]int]float64, n*k)
	target := math.Log2(float64(k))
	for i, neigh := range nns {
		rho := neigh[0].dist
		sigma := smoothKNNDistance(neigh, rho, target)
		for _, nb := range neigh {
			w := 1.0
			if nb.dist > rho && sigma > 0 {
				w = math.Exp(-(nb.dist - rho) / sigma)
			}
			directed[[2]int{i, nb.idx}] = w
		}
	}

	// Symmetrise via fuzzy set union.
	edges := make([]edge, 0, len(directed))
	seen := make(map[[2]int]bool, len(directed))
	for key, u := range directed {
		i, j := key[0], key[1]
		lo, hi := i, j
		if lo > hi {
			lo, hi = hi, lo
		}
		pair := [2]int{lo, hi}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		v := directed[[2]int{j, i}]
		edges = append(edges, edge{from: lo, to: hi, weight: u + v - u*v})
	}

	// Deterministic edge order for a given input.
	sort.Slice(edges, func(x, y int) bool {
		if edges[x].from != edges[y].from {
			return edges[x].from < edges[y].from
		}
		return edges[x].to < edges[y].to
	})

	return edges
}

// smoothKNNDistance binary-searches the kernel bandwidth sigma so that
// the summed neighbour weights hit the target effective neighbourhood.
func smoothKNNDistance(neigh []neighbour, rho, target float64) float64 {
	lo, hi, mid := 0.0, math.Inf(1), 1.0

	for iter := 0; iter < 64; iter++ {
		sum := 0.0
		for _, nb := range neigh {
			d := nb.dist - rho
			if d <= 0 {
				sum++
				continue
			}
			sum += math.Exp(-d / mid)
		}

		if math.Abs(sum-target) < 1e-5 {
			break
		}
		if sum > target {
			hi = mid
			mid = (lo + hi) / 2
		} else {
			lo = mid
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}
	}

	return mid
}

// optimiseLayout runs SGD over the edge set: attraction along positive
// edges scaled by their fuzzy weight, repulsion against sampled
// non-neighbours. The learning rate decays linearly to zero.
func optimiseLayout(layout [][]float64, edges []edge, rng *rand.Rand, epochs int, alpha, a, b float64) {
	n := len(layout)
	dim := len(layout[0])

	for epoch := 0; epoch < epochs; epoch++ {
		lr := alpha * (1.0 - float64(epoch)/float64(epochs))

		for _, e := range edges {
			p, q := layout[e.from], layout[e.to]
			d2 := squaredDistance(p, q)

			// Attractive gradient of the rational quadratic kernel.
			var gradCoeff float64
			if d2 > 0 {
				gradCoeff = -2.0 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1.0)
			}
			gradCoeff *= e.weight

			for d := 0; d < dim; d++ {
				g := clip(gradCoeff * (p[d] - q[d]))
				p[d] += g * lr
				q[d] -= g * lr
			}

			// Negative sampling: push the edge's head away from random
			// other points.
			for s := 0; s < negativeSamples; s++ {
				other := rng.Intn(n)
				if other == e.from {
					continue
				}
				o := layout[other]
				d2 := squaredDistance(p, o)
				repulse := 2.0 * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1.0))
				for d := 0; d < dim; d++ {
					g := clip(repulse * (p[d] - o[d]))
					p[d] += g * lr
				}
			}
		}
	}
}

// curveParams approximates the UMAP low-dimensional kernel parameters
// for a given min_dist. The reference implementation fits these by
// least squares; a table interpolation is close enough for clustering
// preprocessing.
func curveParams(minDist float64) (a, b float64) {
	table := []struct {
		minDist, a, b float64
	}{
		{0.00, 1.93, 0.79},
		{0.10, 1.58, 0.90},
		{0.25, 1.22, 1.00},
		{0.50, 0.83, 1.21},
		{1.00, 0.41, 1.58},
	}

	if minDist <= table[0].minDist {
		return table[0].a, table[0].b
	}
	last := table[len(table)-1]
	if minDist >= last.minDist {
		return last.a, last.b
	}
	for i := 1; i < len(table); i++ {
		if minDist <= table[i].minDist {
			prev := table[i-1]
			t := (minDist - prev.minDist) / (table[i].minDist - prev.minDist)
			return prev.a + t*(table[i].a-prev.a), prev.b + t*(table[i].b-prev.b)
		}
	}
	return last.a, last.b
}

func squaredDistance(p, q []float64) float64 {
	var sum float64
	for i := range p {
		d := p[i] - q[i]
		sum += d * d
	}
	return sum
}

func clip(v float64) float64 {
	if v > gradientClip {
		return gradientClip
	}
	if v < -gradientClip {
		return -gradientClip
	}
	return v
}

// toFloat64 widens embedding vectors for the numeric pipeline.
func toFloat64(vectors [][]float32) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = make([]float64, len(v))
		for j, f := range v {
			out[i][j] = float64(f)
		}
	}
	return out
}
