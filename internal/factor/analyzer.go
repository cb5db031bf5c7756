package factor

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"kpiscout/domain/insight"
	"kpiscout/ports"
)

// Analyzer fits an exploratory factor model by iterated principal-axis
// extraction, rotates it with Kaiser-normalized varimax and scores rows with
// the regression method
type Analyzer struct {
	maxIter int
	tol     float64
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(maxIter int, tol float64) *Analyzer {
	if maxIter <= 0 {
		maxIter = 100
	}
	if tol <= 0 {
		tol = 1e-6
	}
	return &Analyzer{maxIter: maxIter, tol: tol}
}

// NewCapability returns the present capability backed by the gonum analyzer
func NewCapability(cfg Config) ports.FactorCapability {
	return ports.PresentFactorAnalyzer(NewAnalyzer(cfg.MaxIterations, cfg.Tolerance))
}

// Fit implements ports.FactorAnalyzer
func (a *Analyzer) Fit(data [][]float64, nFactors int) (*ports.FactorFit, error) {
	n := len(data)
	if n < 2 {
		return nil, errors.New("need at least two rows")
	}
	p := len(data[0])
	if nFactors < 1 || nFactors >= p {
		return nil, fmt.Errorf("factor count %d out of range for %d columns", nFactors, p)
	}

	flat := make([]float64, 0, n*p)
	for _, row := range data {
		if len(row) != p {
			return nil, errors.New("ragged data matrix")
		}
		flat = append(flat, row...)
	}
	z := mat.NewDense(n, p, flat)

	corr := correlation(z)
	loadings, err := a.extract(corr, nFactors)
	if err != nil {
		return nil, err
	}
	if nFactors > 1 {
		loadings = a.varimax(loadings)
	}
	alignSigns(loadings)

	scores, err := regressionScores(z, corr, loadings)
	if err != nil {
		return nil, err
	}

	return &ports.FactorFit{
		Loadings: denseRows(loadings),
		Scores:   denseRows(scores),
		Variance: explainedVariance(loadings),
	}, nil
}

// correlation computes Z'Z/n, which is the correlation matrix for
// population-standardized input
func correlation(z *mat.Dense) *mat.SymDense {
	n, p := z.Dims()
	var zz mat.Dense
	zz.Mul(z.T(), z)
	corr := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := zz.At(i, j) / float64(n)
			if i == j {
				v = 1
			}
			corr.SetSym(i, j, v)
		}
	}
	return corr
}

// initialCommunalities uses squared multiple correlations, falling back to the
// largest absolute off-diagonal correlation when R is singular
func initialCommunalities(corr *mat.SymDense) []float64 {
	p := corr.SymmetricDim()
	h2 := make([]float64, p)

	var inv mat.Dense
	if err := inv.Inverse(corr); err == nil {
		ok := true
		for i := 0; i < p; i++ {
			d := inv.At(i, i)
			if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
				ok = false
				break
			}
			h2[i] = 1 - 1/d
		}
		if ok {
			return clampCommunalities(h2)
		}
	}

	for i := 0; i < p; i++ {
		best := 0.0
		for j := 0; j < p; j++ {
			if i != j && math.Abs(corr.At(i, j)) > best {
				best = math.Abs(corr.At(i, j))
			}
		}
		h2[i] = best
	}
	return clampCommunalities(h2)
}

func clampCommunalities(h2 []float64) []float64 {
	for i, v := range h2 {
		switch {
		case math.IsNaN(v) || v < 0.005:
			h2[i] = 0.005
		case v > 0.995:
			h2[i] = 0.995
		}
	}
	return h2
}

// extract iterates principal-axis factoring until communalities settle
func (a *Analyzer) extract(corr *mat.SymDense, k int) (*mat.Dense, error) {
	p := corr.SymmetricDim()
	h2 := initialCommunalities(corr)
	var loadings *mat.Dense

	for iter := 0; iter < a.maxIter; iter++ {
		reduced := mat.NewSymDense(p, nil)
		reduced.CopySym(corr)
		for i := 0; i < p; i++ {
			reduced.SetSym(i, i, h2[i])
		}

		var eig mat.EigenSym
		if !eig.Factorize(reduced, true) {
			return nil, errors.New("eigendecomposition did not converge")
		}
		values := eig.Values(nil)
		var vectors mat.Dense
		eig.VectorsTo(&vectors)

		order := make([]int, len(values))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(x, y int) bool { return values[order[x]] > values[order[y]] })

		loadings = mat.NewDense(p, k, nil)
		for f := 0; f < k; f++ {
			col := order[f]
			scale := math.Sqrt(math.Max(values[col], 0))
			for i := 0; i < p; i++ {
				loadings.Set(i, f, vectors.At(i, col)*scale)
			}
		}

		next := clampCommunalities(rowSumSquares(loadings))
		delta := 0.0
		for i := range h2 {
			delta = math.Max(delta, math.Abs(next[i]-h2[i]))
		}
		h2 = next
		if delta < a.tol {
			break
		}
	}
	return loadings, nil
}

func rowSumSquares(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[i] += m.At(i, j) * m.At(i, j)
		}
	}
	return out
}

// varimax rotates loadings with Kaiser row normalization
func (a *Analyzer) varimax(loadings *mat.Dense) *mat.Dense {
	p, k := loadings.Dims()

	norms := rowSumSquares(loadings)
	for i := range norms {
		norms[i] = math.Sqrt(norms[i])
		if norms[i] == 0 {
			norms[i] = 1
		}
	}
	l := mat.NewDense(p, k, nil)
	for i := 0; i < p; i++ {
		for j := 0; j < k; j++ {
			l.Set(i, j, loadings.At(i, j)/norms[i])
		}
	}

	rot := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		rot.Set(i, i, 1)
	}

	d := 0.0
	for iter := 0; iter < a.maxIter; iter++ {
		var lambda mat.Dense
		lambda.Mul(l, rot)

		colSS := make([]float64, k)
		for i := 0; i < p; i++ {
			for j := 0; j < k; j++ {
				colSS[j] += lambda.At(i, j) * lambda.At(i, j)
			}
		}
		target := mat.NewDense(p, k, nil)
		for i := 0; i < p; i++ {
			for j := 0; j < k; j++ {
				v := lambda.At(i, j)
				target.Set(i, j, v*v*v-v*colSS[j]/float64(p))
			}
		}

		var b mat.Dense
		b.Mul(l.T(), target)

		var svd mat.SVD
		if !svd.Factorize(&b, mat.SVDThin) {
			break
		}
		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)
		rot.Mul(&u, v.T())

		dOld := d
		d = 0
		for _, s := range svd.Values(nil) {
			d += s
		}
		if dOld != 0 && d/dOld < 1+a.tol {
			break
		}
	}

	var rotated mat.Dense
	rotated.Mul(l, rot)
	for i := 0; i < p; i++ {
		for j := 0; j < k; j++ {
			rotated.Set(i, j, rotated.At(i, j)*norms[i])
		}
	}
	return &rotated
}

// alignSigns flips each factor so its loadings sum to a positive value
func alignSigns(loadings *mat.Dense) {
	p, k := loadings.Dims()
	for j := 0; j < k; j++ {
		sum := 0.0
		for i := 0; i < p; i++ {
			sum += loadings.At(i, j)
		}
		if sum < 0 {
			for i := 0; i < p; i++ {
				loadings.Set(i, j, -loadings.At(i, j))
			}
		}
	}
}

// regressionScores computes Z R^-1 L, adding a small ridge when R is singular
func regressionScores(z *mat.Dense, corr *mat.SymDense, loadings *mat.Dense) (*mat.Dense, error) {
	var weights mat.Dense
	if err := weights.Solve(corr, loadings); err != nil && !isIllConditioned(err) {
		p := corr.SymmetricDim()
		ridged := mat.NewSymDense(p, nil)
		ridged.CopySym(corr)
		for i := 0; i < p; i++ {
			ridged.SetSym(i, i, corr.At(i, i)+1e-6)
		}
		if err := weights.Solve(ridged, loadings); err != nil && !isIllConditioned(err) {
			return nil, fmt.Errorf("score weights: %w", err)
		}
	}
	var scores mat.Dense
	scores.Mul(z, &weights)
	return &scores, nil
}

// isIllConditioned reports a result that was computed but may be inaccurate
func isIllConditioned(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond) && !math.IsInf(float64(cond), 1)
}

func explainedVariance(loadings *mat.Dense) *insight.FactorVariance {
	p, k := loadings.Dims()
	v := &insight.FactorVariance{
		SSLoadings: make([]float64, k),
		Proportion: make([]float64, k),
		Cumulative: make([]float64, k),
	}
	cum := 0.0
	for j := 0; j < k; j++ {
		ss := 0.0
		for i := 0; i < p; i++ {
			ss += loadings.At(i, j) * loadings.At(i, j)
		}
		v.SSLoadings[j] = ss
		v.Proportion[j] = ss / float64(p)
		cum += v.Proportion[j]
		v.Cumulative[j] = cum
	}
	return v
}

func denseRows(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}
