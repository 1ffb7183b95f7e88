// =============================
// File: internal/bettingpool/resolver.go
// =============================
package bettingpool

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/rovshanmuradov/bettingpool/internal/blockchain"
	"github.com/rovshanmuradov/bettingpool/internal/blockchain/transaction"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AssociatedKey is an (owner, mint) pair.
type AssociatedKey struct {
	Owner solana.PublicKey
	Mint  solana.PublicKey
}

// Resolution is the outcome for one key of a pass.
type Resolution struct {
	Key     AssociatedKey
	Address solana.PublicKey
	// Created is true when this key emitted the creation instruction.
	Created bool
	// Reused is true when an earlier key of the pass had the same address.
	Reused bool
}

// Pass is the working set of one transaction build: the instructions emitted
// so far and the addresses already resolved. Discard it after the build.
type Pass struct {
	builder *transaction.Builder
	seen    map[solana.PublicKey]struct{}
	trace   *Trace
}

func NewPass(trace *Trace) *Pass {
	if trace == nil {
		trace = NewTrace(nil)
	}
	return &Pass{
		builder: transaction.NewBuilder(),
		seen:    make(map[solana.PublicKey]struct{}),
		trace:   trace,
	}
}

func (p *Pass) Builder() *transaction.Builder { return p.builder }

func (p *Pass) Trace() *Trace { return p.trace }

// Seal freezes the instructions emitted by the pass.
func (p *Pass) Seal() transaction.Batch { return p.builder.Seal() }

// Resolver decides which associated accounts must be created.
type Resolver struct {
	fetcher  blockchain.AccountFetcher
	logger   *zap.Logger
	parallel bool
}

// NewResolver creates a resolver. With parallel set, existence probes of a
// single Resolve call run concurrently; emission order is unaffected.
func NewResolver(fetcher blockchain.AccountFetcher, logger *zap.Logger, parallel bool) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		fetcher:  fetcher,
		logger:   logger.Named("resolver"),
		parallel: parallel,
	}
}

// Resolve derives the address of every key in order and appends one creation
// instruction, paid by payer, for each absent address not yet seen in the
// pass. On error the pass is left untouched.
func (r *Resolver) Resolve(ctx context.Context, pass *Pass, payer solana.PublicKey, keys []AssociatedKey) ([]Resolution, error) {
	out := make([]Resolution, len(keys))
	var probe []solana.PublicKey
	queued := make(map[solana.PublicKey]struct{})

	for i, k := range keys {
		addr, err := AssociatedAccountAddress(k.Owner, k.Mint)
		if err != nil {
			return nil, err
		}
		out[i] = Resolution{Key: k, Address: addr}

		if _, ok := pass.seen[addr]; ok {
			continue
		}
		if _, ok := queued[addr]; ok {
			continue
		}
		queued[addr] = struct{}{}
		probe = append(probe, addr)
	}

	absent, err := r.probe(ctx, probe)
	if err != nil {
		return nil, err
	}

	for i := range out {
		addr := out[i].Address
		if _, ok := pass.seen[addr]; ok {
			out[i].Reused = true
			pass.trace.Step("Fetched PDA: %s", addr)
			continue
		}
		pass.seen[addr] = struct{}{}

		if absent[addr] {
			pass.builder.AddInstruction(NewCreateAssociatedAccountInstruction(payer, addr, out[i].Key.Owner, out[i].Key.Mint))
			out[i].Created = true
			pass.trace.Step("Creating PDA: %s", addr)
		} else {
			pass.trace.Step("Fetched PDA: %s", addr)
		}
	}

	r.logger.Debug("Resolved associated accounts",
		zap.Int("keys", len(keys)),
		zap.Int("probed", len(probe)))
	return out, nil
}

func (r *Resolver) probe(ctx context.Context, addrs []solana.PublicKey) (map[solana.PublicKey]bool, error) {
	states := make([]bool, len(addrs))

	if r.parallel && len(addrs) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i, addr := range addrs {
			g.Go(func() error {
				missing, err := r.isAbsent(gctx, addr)
				if err != nil {
					return err
				}
				states[i] = missing
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, addr := range addrs {
			missing, err := r.isAbsent(ctx, addr)
			if err != nil {
				return nil, err
			}
			states[i] = missing
		}
	}

	absent := make(map[solana.PublicKey]bool, len(addrs))
	for i, addr := range addrs {
		absent[addr] = states[i]
	}
	return absent, nil
}

// isAbsent reports whether addr has no usable token account: missing, no
// data yet, zero-filled data of any length, or a token account still in the
// uninitialized state. Non-zero data that does not decode is a query error.
func (r *Resolver) isAbsent(ctx context.Context, addr solana.PublicKey) (bool, error) {
	acc, err := r.fetcher.GetAccount(ctx, addr)
	if err != nil {
		return false, newError(KindQuery, "probe "+addr.String(), err)
	}
	if acc == nil || isZeroed(acc.Data) {
		return true, nil
	}

	var ta token.Account
	if err := ta.UnmarshalWithDecoder(bin.NewBorshDecoder(acc.Data)); err != nil {
		return false, newError(KindQuery, "probe "+addr.String(),
			fmt.Errorf("decode token account: %w", err))
	}
	return ta.State == token.Uninitialized, nil
}

func isZeroed(data []byte) bool {
	return lo.EveryBy(data, func(b byte) bool { return b == 0 })
}
