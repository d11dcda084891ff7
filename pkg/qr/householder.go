package qr

import (
	"context"
	"fmt"
	"math"

	"github.com/rhuss/qrgate/pkg/debug"
	"github.com/rhuss/qrgate/pkg/matrix"
)

// Householder is the production Factorizer.
type Householder struct {
	// RankTolerance defaults to DefaultRankTolerance when zero.
	RankTolerance float64

	// VerifyTolerance enables a post-factorization self-check when > 0.
	VerifyTolerance float64
}

var _ Factorizer = (*Householder)(nil)

// NewHouseholder returns a Householder engine with default tolerances.
func NewHouseholder() *Householder {
	return &Householder{
		RankTolerance:   DefaultRankTolerance,
		VerifyTolerance: DefaultVerifyTolerance,
	}
}

// Factorize computes the reduced QR factorization of a.
//
// Stage 1 reduces a working copy of a to upper-triangular form with one
// reflection H_k = I − 2·v·vᵀ per column, skipping columns that are already
// zero below the diagonal. Each column is divided by its largest magnitude
// before the reflector is built, so entries near the float64 limit do not
// overflow the norm. Stage 2 accumulates the thin Q = H_0·…·H_{n−1}·E
// backwards, where E holds the first n columns of the identity. Stage 3
// flips signs so that diag(R) >= 0.
func (h *Householder) Factorize(ctx context.Context, a matrix.Matrix) (*Result, error) {
	m, n := a.Rows(), a.Cols()
	if m == 0 || n == 0 || m < n {
		return nil, &FactorizationError{Err: ErrShape, Detail: fmt.Sprintf("%dx%d", m, n)}
	}

	work := a.Clone()
	vs := make([][]float64, n)

	// Stage 1: triangularize.
	for k := 0; k < n; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var scale float64
		for i := k; i < m; i++ {
			scale = math.Max(scale, math.Abs(work[i][k]))
		}
		if scale == 0 {
			continue
		}

		v := make([]float64, m)
		for i := k; i < m; i++ {
			v[i] = work[i][k] / scale
		}
		alpha := -math.Copysign(matrix.Norm(v[k:]), v[k])
		v[k] -= alpha

		vn := matrix.Norm(v[k:])
		if vn == 0 {
			continue
		}
		for i := k; i < m; i++ {
			v[i] /= vn
		}

		// H_k maps column k onto alpha·e_k.
		work[k][k] = alpha * scale
		for i := k + 1; i < m; i++ {
			work[i][k] = 0
		}
		for j := k + 1; j < n; j++ {
			reflect(work, v, k, j)
		}

		vs[k] = v
	}

	r := matrix.Zeros(n, n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r[i][j] = work[i][j]
		}
	}

	// Stage 2: accumulate thin Q.
	q := matrix.Zeros(m, n)
	for i := 0; i < n; i++ {
		q[i][i] = 1
	}
	for k := n - 1; k >= 0; k-- {
		v := vs[k]
		if v == nil {
			continue
		}
		for j := 0; j < n; j++ {
			reflect(q, v, k, j)
		}
	}

	// Stage 3: non-negative diagonal.
	for k := 0; k < n; k++ {
		if r[k][k] >= 0 {
			continue
		}
		for j := k; j < n; j++ {
			r[k][j] = -r[k][j]
		}
		for i := 0; i < m; i++ {
			q[i][k] = -q[i][k]
		}
	}

	if !q.AllFinite() || !r.AllFinite() {
		return nil, &FactorizationError{Err: ErrNonFinite}
	}

	res := &Result{Q: q, R: r, Rank: h.rank(r)}

	if h.VerifyTolerance > 0 {
		recon, orth, err := Check(a, res)
		if err != nil {
			return nil, &FactorizationError{Err: err}
		}
		if recon > h.VerifyTolerance || orth > h.VerifyTolerance {
			return nil, &FactorizationError{
				Err:    ErrVerification,
				Detail: fmt.Sprintf("reconstruction=%.3g orthogonality=%.3g", recon, orth),
			}
		}
	}

	if res.RankDeficient() {
		debug.Log("qr", "rank-deficient input", "rows", m, "cols", n, "rank", res.Rank)
	}

	return res, nil
}

// reflect applies I − 2·v·vᵀ to rows k.. of column j of x. v has unit norm.
func reflect(x matrix.Matrix, v []float64, k, j int) {
	var sum float64
	for i := k; i < len(x); i++ {
		sum += v[i] * x[i][j]
	}
	for i := k; i < len(x); i++ {
		x[i][j] -= 2 * v[i] * sum
	}
}

// rank counts diagonal entries above the relative rank tolerance.
func (h *Householder) rank(r matrix.Matrix) int {
	tol := h.RankTolerance
	if tol <= 0 {
		tol = DefaultRankTolerance
	}

	var largest float64
	for i := range r {
		largest = math.Max(largest, math.Abs(r[i][i]))
	}
	if largest == 0 {
		return 0
	}

	rank := 0
	for i := range r {
		if math.Abs(r[i][i]) > tol*largest {
			rank++
		}
	}
	return rank
}
