// internal/blockchain/types.go
package blockchain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Account is the raw state of a ledger account.
type Account struct {
	Owner      solana.PublicKey
	Lamports   uint64
	Executable bool
	Data       []byte
}

// SubmitOptions controls how a transaction is sent.
type SubmitOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	SkipConfirmation    bool
	ConfirmTimeout      time.Duration
}

// AccountFetcher reads accounts. A missing account is reported as (nil, nil).
type AccountFetcher interface {
	GetAccount(ctx context.Context, pubkey solana.PublicKey) (*Account, error)
}

// RentCalculator answers rent-exemption queries.
type RentCalculator interface {
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}

// Submitter signs and sends an ordered instruction sequence. The first
// signer pays the fee.
type Submitter interface {
	Submit(ctx context.Context, instructions []solana.Instruction, signers []solana.PrivateKey) (solana.Signature, error)
}

// Client is the full ledger surface used by the CLI.
type Client interface {
	AccountFetcher
	RentCalculator
	Submitter
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
}
