package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/custodia-labs/raptor/internal/core/domain"
)

// Clustering defaults.
const (
	// DefaultThreshold is the posterior probability above which a point
	// joins a component's cluster.
	DefaultThreshold = 0.1

	// DefaultMaxClusters bounds the component-count search.
	DefaultMaxClusters = 50

	// DefaultMaxIterations caps EM iterations per candidate model.
	DefaultMaxIterations = 100

	// DefaultTolerance is the log-likelihood convergence threshold.
	DefaultTolerance = 1e-4

	// varianceFloor is the absolute minimum component variance.
	varianceFloor = 1e-6

	// varianceFloorFraction ties the floor to the data scale: no
	// component variance may shrink below this fraction of the global
	// per-dimension variance. An absolute floor alone lets a component
	// collapse onto one point and swamp the likelihood, which drives
	// model selection towards the maximum component count.
	varianceFloorFraction = 1e-2

	// minEffectivePoints is the smallest effective membership
	// (weight * N) a fitted component may carry. Thinner candidates are
	// rejected during model selection.
	minEffectivePoints = 2.0
)

// ClusterConfig configures a soft clustering run.
type ClusterConfig struct {
	// MaxClusters bounds the component-count search. Zero means default.
	MaxClusters int

	// Threshold is the posterior probability above which a point is
	// assigned to a component. Zero means default.
	Threshold float64

	// MaxIterations caps EM iterations per candidate. Zero means default.
	MaxIterations int

	// Tolerance is the convergence threshold. Zero means default.
	Tolerance float64

	// Seed fixes the random source used for initialisation.
	Seed int64
}

// Assignments holds, for each input point, the set of cluster indices
// the point belongs to. Soft clustering is a genuine multi-membership
// relationship: a point straddling two topics appears in both.
type Assignments [][]int

// ClusterCount returns the number of distinct clusters referenced.
func (a Assignments) ClusterCount() int {
	seen := make(map[int]bool)
	for _, set := range a {
		for _, c := range set {
			seen[c] = true
		}
	}
	return len(seen)
}

// SoftCluster fits a Gaussian mixture model over the points and assigns
// each point to every component whose posterior probability exceeds the
// threshold. The component count is chosen automatically by fitting
// candidates from one up to min(MaxClusters, N-1) and keeping the model
// with the lowest Bayesian information criterion.
//
// Every point is guaranteed at least one cluster: when no component
// clears the threshold, the best-fit component is used.
func SoftCluster(points [][]float64, cfg ClusterConfig) (Assignments, error) {
	n := len(points)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points to cluster, got %d", domain.ErrInvalidInput, n)
	}
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("%w: point %d has dimension %d, want %d",
				domain.ErrInvalidInput, i, len(p), dim)
		}
	}

	maxClusters := cfg.MaxClusters
	if maxClusters <= 0 {
		maxClusters = DefaultMaxClusters
	}
	if maxClusters > n-1 {
		maxClusters = n - 1
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	var best *mixture
	bestBIC := math.Inf(1)
	for k := 1; k <= maxClusters; k++ {
		m := fitMixture(points, k, maxIter, tol, rng)
		if m == nil {
			continue
		}
		bic := m.bic(n)
		if bic < bestBIC {
			bestBIC = bic
			best = m
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no mixture model could be fitted", domain.ErrInvalidInput)
	}

	// Soft assignment from posteriors.
	out := make(Assignments, n)
	for i, p := range points {
		post := best.posteriors(p)
		var set []int
		bestIdx, bestProb := 0, post[0]
		for c, prob := range post {
			if prob > threshold {
				set = append(set, c)
			}
			if prob > bestProb {
				bestIdx, bestProb = c, prob
			}
		}
		if len(set) == 0 {
			set = []int{bestIdx}
		}
		out[i] = set
	}

	return out, nil
}

// mixture is a diagonal-covariance Gaussian mixture model.
type mixture struct {
	weights   []float64   // component priors
	means     [][]float64 // per-component means
	variances [][]float64 // per-component diagonal variances
	logLik    float64     // converged total log-likelihood
}

// fitMixture runs expectation-maximisation for a fixed component count.
// Returns nil when the fit degenerates: an emptied component, or one
// whose effective membership falls below minEffectivePoints.
func fitMixture(points [][]float64, k, maxIter int, tol float64, rng *rand.Rand) *mixture {
	n := len(points)
	dim := len(points[0])

	m := &mixture{
		weights:   make([]float64, k),
		means:     kmeansPlusPlusInit(points, k, rng),
		variances: make([][]float64, k),
	}

	// Start from the global variance for every component.
	globalVar := make([]float64, dim)
	mean := make([]float64, dim)
	for _, p := range points {
		floats.Add(mean, p)
	}
	floats.Scale(1/float64(n), mean)
	for _, p := range points {
		for d := range globalVar {
			diff := p[d] - mean[d]
			globalVar[d] += diff * diff
		}
	}
	floor := make([]float64, dim)
	for d := range globalVar {
		globalVar[d] /= float64(n)
		floor[d] = math.Max(varianceFloor, varianceFloorFraction*globalVar[d])
		globalVar[d] = math.Max(globalVar[d], floor[d])
	}
	for c := 0; c < k; c++ {
		m.weights[c] = 1.0 / float64(k)
		m.variances[c] = append([]float64(nil), globalVar...)
	}

	resp := make([][]float64, n)
	for i := range resp {
		resp[i] = make([]float64, k)
	}

	prevLik := math.Inf(-1)
	for iter := 0; iter < maxIter; iter++ {
		// E step: responsibilities via log-sum-exp.
		total := 0.0
		for i, p := range points {
			logs := make([]float64, k)
			for c := 0; c < k; c++ {
				logs[c] = math.Log(m.weights[c]) + logGaussian(p, m.means[c], m.variances[c])
			}
			lse := logSumExp(logs)
			total += lse
			for c := 0; c < k; c++ {
				resp[i][c] = math.Exp(logs[c] - lse)
			}
		}
		m.logLik = total

		// M step: weights, means, variances from responsibilities.
		for c := 0; c < k; c++ {
			nc := 0.0
			for i := 0; i < n; i++ {
				nc += resp[i][c]
			}
			if nc < 1e-10 {
				return nil
			}
			m.weights[c] = nc / float64(n)

			mu := make([]float64, dim)
			for i, p := range points {
				floats.AddScaled(mu, resp[i][c], p)
			}
			floats.Scale(1/nc, mu)
			m.means[c] = mu

			va := make([]float64, dim)
			for i, p := range points {
				for d := 0; d < dim; d++ {
					diff := p[d] - mu[d]
					va[d] += resp[i][c] * diff * diff
				}
			}
			for d := range va {
				va[d] = math.Max(va[d]/nc, floor[d])
			}
			m.variances[c] = va
		}

		if math.Abs(m.logLik-prevLik) < tol {
			break
		}
		prevLik = m.logLik
	}

	// A component explaining fewer than minEffectivePoints has
	// collapsed onto noise; reject the candidate rather than let it
	// inflate the likelihood.
	for c := 0; c < k; c++ {
		if m.weights[c]*float64(n) < minEffectivePoints {
			return nil
		}
	}

	return m
}

// bic scores the fitted model: -2*logL + p*ln(N), where p counts the
// free parameters of a diagonal-covariance mixture.
func (m *mixture) bic(n int) float64 {
	k := len(m.weights)
	dim := len(m.means[0])
	params := float64(k*(2*dim+1) - 1)
	return -2*m.logLik + params*math.Log(float64(n))
}

// posteriors returns the membership probability of a point under every
// component.
func (m *mixture) posteriors(p []float64) []float64 {
	k := len(m.weights)
	logs := make([]float64, k)
	for c := 0; c < k; c++ {
		logs[c] = math.Log(m.weights[c]) + logGaussian(p, m.means[c], m.variances[c])
	}
	lse := logSumExp(logs)
	out := make([]float64, k)
	for c := range out {
		out[c] = math.Exp(logs[c] - lse)
	}
	return out
}

// kmeansPlusPlusInit spreads initial means with distance-weighted
// sampling.
func kmeansPlusPlusInit(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	means := make([][]float64, 0, k)
	means = append(means, append([]float64(nil), points[rng.Intn(n)]...))

	dists := make([]float64, n)
	for len(means) < k {
		total := 0.0
		for i, p := range points {
			min := math.Inf(1)
			for _, mu := range means {
				if d := squaredDistance(p, mu); d < min {
					min = d
				}
			}
			dists[i] = min
			total += min
		}

		if total == 0 {
			// All remaining points coincide with a mean; pick uniformly.
			means = append(means, append([]float64(nil), points[rng.Intn(n)]...))
			continue
		}

		r := rng.Float64() * total
		acc := 0.0
		chosen := n - 1
		for i, d := range dists {
			acc += d
			if acc >= r {
				chosen = i
				break
			}
		}
		means = append(means, append([]float64(nil), points[chosen]...))
	}

	return means
}

// logGaussian evaluates the log density of a diagonal Gaussian.
func logGaussian(p, mean, variance []float64) float64 {
	sum := 0.0
	for d := range p {
		diff := p[d] - mean[d]
		sum += diff*diff/variance[d] + math.Log(2*math.Pi*variance[d])
	}
	return -0.5 * sum
}

// logSumExp computes log(sum(exp(xs))) stably.
func logSumExp(xs []float64) float64 {
	max := math.Inf(-1)
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}
