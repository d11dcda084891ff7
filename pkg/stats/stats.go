// Package stats derives aggregate statistics from the factors of a QR
// factorization.
package stats

import (
	"context"
	"fmt"
	"math"

	"github.com/rhuss/qrgate/pkg/matrix"
)

// DefaultDiagonalTolerance is the magnitude below which an off-diagonal
// entry counts as zero.
const DefaultDiagonalTolerance = 1e-10

// Statistics is the wire shape returned by /matrix/operations.
type Statistics struct {
	MaxValue          float64 `json:"maxValue"`
	MinValue          float64 `json:"minValue"`
	AverageValue      float64 `json:"averageValue"`
	TotalSum          float64 `json:"totalSum"`
	HasDiagonalMatrix bool    `json:"hasDiagonalMatrix"`
}

// Analyzer computes Statistics for a (q, r) pair. Implementations may run
// locally or delegate to a peer service.
type Analyzer interface {
	Analyze(ctx context.Context, q, r matrix.Matrix) (*Statistics, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, q, r matrix.Matrix) (*Statistics, error)

// Analyze calls f(ctx, q, r).
func (f AnalyzerFunc) Analyze(ctx context.Context, q, r matrix.Matrix) (*Statistics, error) {
	return f(ctx, q, r)
}

// StatisticsError reports that statistics could not be computed.
type StatisticsError struct {
	Detail string
}

func (e *StatisticsError) Error() string {
	return "Error processing QR result: " + e.Detail
}

// Engine is the in-process Analyzer.
type Engine struct {
	// DiagonalTolerance defaults to DefaultDiagonalTolerance when zero.
	DiagonalTolerance float64
}

var _ Analyzer = (*Engine)(nil)

// NewEngine returns an Engine with the default tolerance.
func NewEngine() *Engine {
	return &Engine{DiagonalTolerance: DefaultDiagonalTolerance}
}

// Analyze scans q then r row by row. The scan order is fixed so the sum,
// and therefore the average, is bit-identical across calls.
func (e *Engine) Analyze(ctx context.Context, q, r matrix.Matrix) (*Statistics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Len() == 0 {
		return nil, &StatisticsError{Detail: "q matrix is empty"}
	}
	if r.Len() == 0 {
		return nil, &StatisticsError{Detail: "r matrix is empty"}
	}

	var (
		maxV  = math.Inf(-1)
		minV  = math.Inf(1)
		sum   float64
		count int
	)
	for _, m := range []matrix.Matrix{q, r} {
		for _, row := range m {
			for _, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, &StatisticsError{Detail: fmt.Sprintf("non-finite value %v", v)}
				}
				maxV = math.Max(maxV, v)
				minV = math.Min(minV, v)
				sum += v
				count++
			}
		}
	}

	avg := sum / float64(count)
	if math.IsInf(sum, 0) || math.IsNaN(avg) || math.IsInf(avg, 0) {
		return nil, &StatisticsError{Detail: "sum overflows float64"}
	}

	tol := e.DiagonalTolerance
	if tol <= 0 {
		tol = DefaultDiagonalTolerance
	}

	return &Statistics{
		MaxValue:          maxV,
		MinValue:          minV,
		AverageValue:      avg,
		TotalSum:          sum,
		HasDiagonalMatrix: IsDiagonal(q, tol) || IsDiagonal(r, tol),
	}, nil
}

// IsDiagonal reports whether every entry off the main diagonal (row != col)
// has magnitude below tol. Rectangular and ragged matrices are walked
// row by row without assuming a shape.
func IsDiagonal(m matrix.Matrix, tol float64) bool {
	for i, row := range m {
		for j, v := range row {
			if i != j && math.Abs(v) >= tol {
				return false
			}
		}
	}
	return true
}
