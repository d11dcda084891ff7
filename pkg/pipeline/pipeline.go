// Package pipeline composes validation, factorization, token acquisition
// and statistics into one request-scoped run.
//
// The orchestrator does not know whether statistics run in-process or on a
// peer: it attaches a bearer token to the context when a TokenSource is
// configured and hands the factors to whatever stats.Analyzer it was given.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rhuss/qrgate/pkg/auth"
	"github.com/rhuss/qrgate/pkg/debug"
	"github.com/rhuss/qrgate/pkg/matrix"
	"github.com/rhuss/qrgate/pkg/observability"
	"github.com/rhuss/qrgate/pkg/qr"
	"github.com/rhuss/qrgate/pkg/stats"
)

// Stage names a pipeline step.
type Stage string

const (
	StageValidation    Stage = "validation"
	StageFactorization Stage = "factorization"
	StageAuth          Stage = "auth"
	StageStatistics    Stage = "statistics"
)

// StageError records which step failed. Err keeps the typed cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage of err, or "" when err is not a
// *StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Result is the combined output of a run.
type Result struct {
	Q          matrix.Matrix     `json:"q"`
	R          matrix.Matrix     `json:"r"`
	Operations *stats.Statistics `json:"operations"`
}

// TokenSource supplies the bearer token used for the statistics call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token calls f(ctx).
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Orchestrator runs the factorization pipeline. Tokens is optional; when
// nil no token is attached.
type Orchestrator struct {
	Factorizer qr.Factorizer
	Analyzer   stats.Analyzer
	Tokens     TokenSource
}

// Run validates raw, factorizes it, obtains a token when configured,
// computes statistics and assembles the result. It stops at the first
// failing stage.
func (o *Orchestrator) Run(ctx context.Context, raw any) (*Result, error) {
	res, deficient, err := o.run(ctx, raw)
	observability.PipelineRunsTotal.WithLabelValues(outcome(deficient, err)).Inc()
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, raw any) (*Result, bool, error) {
	var m matrix.Matrix
	if err := timed(StageValidation, func() (err error) {
		m, err = matrix.Validate(raw)
		return err
	}); err != nil {
		return nil, false, err
	}
	observability.MatrixCells.Observe(float64(m.Len()))

	var factors *qr.Result
	if err := timed(StageFactorization, func() (err error) {
		factors, err = o.Factorizer.Factorize(ctx, m)
		return err
	}); err != nil {
		return nil, false, err
	}

	if o.Tokens != nil {
		token, err := o.Tokens.Token(ctx)
		if err != nil {
			return nil, false, &StageError{Stage: StageAuth, Err: err}
		}
		ctx = auth.ContextWithToken(ctx, token)
	}

	var ops *stats.Statistics
	if err := timed(StageStatistics, func() (err error) {
		ops, err = o.Analyzer.Analyze(ctx, factors.Q, factors.R)
		return err
	}); err != nil {
		return nil, false, err
	}

	debug.Log("pipeline", "run complete",
		"rows", m.Rows(), "cols", m.Cols(), "rank", factors.Rank,
		"diagonal", ops.HasDiagonalMatrix)

	return &Result{Q: factors.Q, R: factors.R, Operations: ops}, factors.RankDeficient(), nil
}

// timed runs fn, records its duration and wraps a failure in a StageError.
func timed(stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	observability.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	if err != nil {
		debug.Log("pipeline", "stage failed", "stage", stage, "error", err)
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}

func outcome(deficient bool, err error) string {
	switch {
	case err == nil && deficient:
		return observability.OutcomeRankDeficient
	case err == nil:
		return observability.OutcomeSuccess
	case StageOf(err) == StageValidation:
		return observability.OutcomeInvalid
	default:
		return observability.OutcomeError
	}
}

// ForwardToken reuses the inbound caller's token, as stored in the
// context by auth.Middleware or by the transport for ungated routes.
func ForwardToken() TokenSource {
	return TokenSourceFunc(func(ctx context.Context) (string, error) {
		if tok := auth.TokenFromContext(ctx); tok != "" {
			return tok, nil
		}
		return "", auth.NewError(auth.KindMissing, auth.ErrMissingToken)
	})
}

// ServiceToken issues a token for a fixed service identity on every run.
func ServiceToken(issuer auth.TokenIssuer, id auth.Identity) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) {
		tok, err := issuer.Issue(&id)
		if err != nil {
			return "", auth.NewError(auth.KindUnavailable, err)
		}
		return tok, nil
	})
}
