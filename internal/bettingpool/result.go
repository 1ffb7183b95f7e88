// =============================
// File: internal/bettingpool/result.go
// =============================
package bettingpool

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Status codes of a Result, kept numerically compatible with HTTP.
const (
	StatusOK     = 200
	StatusFailed = 400
)

// Result is the outcome of one public operation.
type Result struct {
	Status    int       `json:"status"`
	Trace     []string  `json:"trace"`
	Msg       string    `json:"msg"`
	Signature string    `json:"tx,omitempty"`
	Created   string    `json:"created,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Plan      *PlanView `json:"plan,omitempty"`
	Err       error     `json:"-"`
}

func (r *Result) OK() bool {
	return r.Status == StatusOK && r.Err == nil
}

// Kind returns the failure kind, KindUnknown on success.
func (r *Result) Kind() Kind {
	return KindOf(r.Err)
}

// Trace records the steps of an operation in order.
type Trace struct {
	steps  []string
	logger *zap.Logger
}

func NewTrace(logger *zap.Logger) *Trace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trace{logger: logger}
}

// Step appends a formatted entry.
func (t *Trace) Step(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	t.steps = append(t.steps, s)
	t.logger.Debug("step", zap.String("step", s))
}

// Steps returns a copy of the entries recorded so far.
func (t *Trace) Steps() []string {
	return append([]string(nil), t.steps...)
}

func (t *Trace) String() string {
	return strings.Join(t.steps, " | ")
}

// Fail builds a failed result. err keeps its kind if it already has one.
func (t *Trace) Fail(fallback Kind, step string, err error) *Result {
	e := wrap(fallback, step, err)
	t.steps = append(t.steps, "ERROR: "+e.Error())
	t.logger.Warn("operation failed",
		zap.String("step", step),
		zap.Stringer("kind", e.Kind),
		zap.Error(err))
	return &Result{
		Status:    StatusFailed,
		Trace:     t.Steps(),
		Msg:       t.String(),
		ErrorKind: e.Kind.String(),
		Err:       e,
	}
}

// Succeed builds a successful result; created may be zero.
func (t *Trace) Succeed(sig solana.Signature, created solana.PublicKey) *Result {
	r := &Result{
		Status:    StatusOK,
		Trace:     t.Steps(),
		Msg:       t.String(),
		Signature: sig.String(),
	}
	if !created.IsZero() {
		r.Created = created.String()
	}
	return r
}

// Preview builds a successful result for a plan that was not submitted.
func (t *Trace) Preview(plan *PlanView, created solana.PublicKey) *Result {
	r := t.Succeed(solana.Signature{}, created)
	r.Signature = ""
	r.Plan = plan
	return r
}
