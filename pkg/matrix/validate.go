package matrix

import (
	"encoding/json"
	"math"
)

// Validate checks that input is usable as a QR factorization input and
// returns it as a Matrix.
//
// Accepted shapes are Matrix, [][]float64, and the generic form produced by
// decoding JSON into an any ([]any of []any of float64 or json.Number).
// Checks run in order and the first failure is returned as a
// *ValidationError:
//   - input is a non-empty sequence
//   - the first row is a non-empty sequence
//   - every row is a sequence of the same length as the first
//   - every cell is a finite real number
//   - rows >= columns
func Validate(input any) (Matrix, error) {
	rows, ok := asSequence(input)
	if !ok || len(rows) == 0 {
		return nil, newValidationError(MsgNotArray, -1, -1)
	}

	first, ok := asRow(rows[0])
	if !ok || first.len() == 0 {
		return nil, newValidationError(MsgEmptyRows, 0, -1)
	}
	numCols := first.len()

	out := make(Matrix, len(rows))
	for i, raw := range rows {
		row, ok := asRow(raw)
		if !ok || row.len() != numCols {
			return nil, newValidationError(MsgRaggedRows, i, -1)
		}
		vals := make([]float64, numCols)
		for j := 0; j < numCols; j++ {
			v, ok := row.at(j)
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, newValidationError(MsgInvalidElement, i, j)
			}
			vals[j] = v
		}
		out[i] = vals
	}

	if len(out) < numCols {
		return nil, newValidationError(MsgTooFewRows, -1, -1)
	}

	return out, nil
}

// asSequence unwraps the outer level of the accepted input shapes.
func asSequence(input any) ([]any, bool) {
	switch v := input.(type) {
	case Matrix:
		return floatRows(v), true
	case [][]float64:
		return floatRows(v), true
	case []any:
		return v, true
	case [][]any:
		out := make([]any, len(v))
		for i, row := range v {
			out[i] = row
		}
		return out, true
	default:
		return nil, false
	}
}

func floatRows(m [][]float64) []any {
	out := make([]any, len(m))
	for i, row := range m {
		out[i] = row
	}
	return out
}

// row abstracts over typed and untyped row representations.
type row struct {
	floats []float64
	values []any
	typed  bool
}

func asRow(v any) (row, bool) {
	switch r := v.(type) {
	case []float64:
		return row{floats: r, typed: true}, true
	case []any:
		return row{values: r}, true
	default:
		return row{}, false
	}
}

func (r row) len() int {
	if r.typed {
		return len(r.floats)
	}
	return len(r.values)
}

func (r row) at(j int) (float64, bool) {
	if r.typed {
		return r.floats[j], true
	}
	return asNumber(r.values[j])
}

// asNumber converts a decoded JSON cell to float64. Booleans, strings,
// null and nested values are rejected.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
