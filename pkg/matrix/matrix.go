// Package matrix defines the dense real matrix shared by the factorization
// and statistics stages, together with the input validator that turns an
// untyped request payload into a Matrix.
//
// A Matrix is a row-major slice of rows. Once returned by Validate it is
// treated as immutable: every operation in this package and in the qr and
// stats packages allocates its result instead of writing into its inputs.
package matrix

import "math"

// Matrix is an ordered sequence of rows of real numbers.
type Matrix [][]float64

// Rows returns the number of rows.
func (m Matrix) Rows() int {
	return len(m)
}

// Cols returns the length of the first row, or 0 for an empty matrix.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Len returns the total number of entries across all rows.
func (m Matrix) Len() int {
	n := 0
	for _, row := range m {
		n += len(row)
	}
	return n
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Zeros allocates an r x c matrix of zeros.
func Zeros(r, c int) Matrix {
	out := make(Matrix, r)
	for i := range out {
		out[i] = make([]float64, c)
	}
	return out
}

// Identity returns the n x n identity matrix.
func Identity(n int) Matrix {
	out := Zeros(n, n)
	for i := 0; i < n; i++ {
		out[i][i] = 1
	}
	return out
}

// Transpose returns mᵀ. The input must be rectangular.
func (m Matrix) Transpose() Matrix {
	r, c := m.Rows(), m.Cols()
	out := Zeros(c, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[j][i] = m[i][j]
		}
	}
	return out
}

// Mul returns a·b. It returns ErrDimensionMismatch when a.Cols() != b.Rows().
func Mul(a, b Matrix) (Matrix, error) {
	if a.Cols() != b.Rows() {
		return nil, ErrDimensionMismatch
	}
	r, inner, c := a.Rows(), a.Cols(), b.Cols()
	out := Zeros(r, c)
	for i := 0; i < r; i++ {
		for k := 0; k < inner; k++ {
			aik := a[i][k]
			if aik == 0 {
				continue
			}
			for j := 0; j < c; j++ {
				out[i][j] += aik * b[k][j]
			}
		}
	}
	return out, nil
}

// FrobeniusNorm returns sqrt(Σ m[i][j]²), accumulated with scaling so it
// stays finite whenever the result is representable.
func (m Matrix) FrobeniusNorm() float64 {
	var s sumSquares
	for _, row := range m {
		for _, v := range row {
			s.add(v)
		}
	}
	return s.norm()
}

// Norm returns the Euclidean norm of v without intermediate overflow.
func Norm(v []float64) float64 {
	var s sumSquares
	for _, x := range v {
		s.add(x)
	}
	return s.norm()
}

// sumSquares tracks Σx² as scale²·ssq, rescaling whenever a larger
// magnitude arrives.
type sumSquares struct {
	scale, ssq float64
}

func (s *sumSquares) add(x float64) {
	if x == 0 {
		return
	}
	a := math.Abs(x)
	if s.scale < a {
		r := s.scale / a
		s.ssq = 1 + s.ssq*r*r
		s.scale = a
		return
	}
	r := a / s.scale
	s.ssq += r * r
}

func (s sumSquares) norm() float64 {
	return s.scale * math.Sqrt(s.ssq)
}

// FrobeniusDistance returns ‖a − b‖_F. Both matrices must have the same shape.
func FrobeniusDistance(a, b Matrix) (float64, error) {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return 0, ErrDimensionMismatch
	}
	var s sumSquares
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return 0, ErrDimensionMismatch
		}
		for j := range a[i] {
			s.add(a[i][j] - b[i][j])
		}
	}
	return s.norm(), nil
}

// AllFinite reports whether every entry is neither NaN nor ±Inf.
func (m Matrix) AllFinite() bool {
	for _, row := range m {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
