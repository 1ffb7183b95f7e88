// =============================
// File: internal/bettingpool/errors.go
// =============================
package bettingpool

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/bettingpool/internal/utils/binary"
)

// Kind classifies a failure for the caller's retry policy.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindDerivation
	KindQuery
	KindSubmission
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDerivation:
		return "derivation"
	case KindQuery:
		return "query"
	case KindSubmission:
		return "submission"
	default:
		return "unknown"
	}
}

var (
	ErrTooManySeeds      = errors.New("too many seeds")
	ErrSeedTooLong       = errors.New("seed exceeds maximum length")
	ErrNoViableBump      = errors.New("no viable bump seed")
	ErrAmountOutOfRange  = errors.New("amount does not fit in u64")
	ErrInvalidOpcode     = errors.New("unknown opcode")
	ErrPayloadLength     = errors.New("unexpected payload length")
	ErrPoolNotFound      = errors.New("pool account not found")
	ErrPoolSizeMismatch  = binary.ErrSizeMismatch
	ErrPoolSettled       = errors.New("pool already settled")
	ErrNotPoolMint       = errors.New("mint does not belong to pool")
	ErrInvalidKey        = errors.New("invalid private key")
	ErrNoSubmitter       = errors.New("no submitter configured")
	ErrEmptyInstructions = errors.New("no instructions to submit")
)

// Error carries the kind and the step at which an operation failed.
type Error struct {
	Kind Kind
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failure at %s: %v", e.Kind, e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, step string, err error) *Error {
	return &Error{Kind: kind, Step: step, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// wrap returns the *Error already in err's chain, or classifies err as
// fallback at step.
func wrap(fallback Kind, step string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(fallback, step, err)
}
