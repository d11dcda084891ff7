// Package qr computes the reduced QR factorization of a validated matrix.
//
// For an m x n input with m >= n, Factorize returns Q (m x n, orthonormal
// columns) and R (n x n, upper-triangular) with Q·R reconstructing the
// input. The production implementation uses Householder reflections; the
// diagonal of R is normalized to be non-negative.
package qr

import (
	"context"

	"github.com/rhuss/qrgate/pkg/matrix"
)

// Default numeric tolerances. Both are exposed through configuration so
// tests can exercise different precision regimes.
const (
	// DefaultRankTolerance is the relative threshold below which a diagonal
	// entry of R counts as zero when computing the numerical rank.
	DefaultRankTolerance = 1e-12

	// DefaultVerifyTolerance bounds the relative reconstruction error
	// ‖Q·R − A‖/max(1,‖A‖) and the orthogonality error ‖QᵀQ − I‖.
	DefaultVerifyTolerance = 1e-8
)

// Result holds the factors of a QR factorization.
type Result struct {
	Q matrix.Matrix `json:"q"`
	R matrix.Matrix `json:"r"`

	// Rank is the numerical rank: the number of diagonal entries of R whose
	// magnitude exceeds the rank tolerance relative to the largest one.
	Rank int `json:"-"`
}

// RankDeficient reports whether the input had linearly dependent columns
// within the rank tolerance.
func (r *Result) RankDeficient() bool {
	return r.Rank < r.R.Rows()
}

// Factorizer decomposes a matrix into Q and R.
type Factorizer interface {
	Factorize(ctx context.Context, m matrix.Matrix) (*Result, error)
}

// FactorizerFunc adapts an ordinary function to the Factorizer interface.
type FactorizerFunc func(ctx context.Context, m matrix.Matrix) (*Result, error)

// Factorize calls f(ctx, m).
func (f FactorizerFunc) Factorize(ctx context.Context, m matrix.Matrix) (*Result, error) {
	return f(ctx, m)
}

// Check computes the relative reconstruction error ‖Q·R − a‖_F/max(1,‖a‖_F)
// and the orthogonality error ‖QᵀQ − I‖_F for a result.
func Check(a matrix.Matrix, res *Result) (reconstruction, orthogonality float64, err error) {
	qr, err := matrix.Mul(res.Q, res.R)
	if err != nil {
		return 0, 0, err
	}
	dist, err := matrix.FrobeniusDistance(qr, a)
	if err != nil {
		return 0, 0, err
	}
	scale := a.FrobeniusNorm()
	if scale < 1 {
		scale = 1
	}

	qtq, err := matrix.Mul(res.Q.Transpose(), res.Q)
	if err != nil {
		return 0, 0, err
	}
	orth, err := matrix.FrobeniusDistance(qtq, matrix.Identity(res.Q.Cols()))
	if err != nil {
		return 0, 0, err
	}

	return dist / scale, orth, nil
}
