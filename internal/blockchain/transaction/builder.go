// internal/blockchain/transaction/builder.go
package transaction

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/samber/lo"
)

var (
	ErrNoInstructions = errors.New("no instructions")
	ErrNoSigners      = errors.New("no signers provided")
)

// Builder accumulates instructions for one transaction in order.
type Builder struct {
	instructions []solana.Instruction
	signers      []solana.PrivateKey
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AddInstruction appends an instruction.
func (b *Builder) AddInstruction(instruction solana.Instruction) *Builder {
	b.instructions = append(b.instructions, instruction)
	return b
}

// AddSigner registers a signer once; the first signer pays the fee.
func (b *Builder) AddSigner(signer solana.PrivateKey) *Builder {
	for _, s := range b.signers {
		if s.PublicKey().Equals(signer.PublicKey()) {
			return b
		}
	}
	b.signers = append(b.signers, signer)
	return b
}

// Len returns the number of instructions added so far.
func (b *Builder) Len() int {
	return len(b.instructions)
}

// Seal returns an immutable snapshot. The builder may keep being used.
func (b *Builder) Seal() Batch {
	return Batch{
		instructions: append([]solana.Instruction(nil), b.instructions...),
		signers:      append([]solana.PrivateKey(nil), b.signers...),
	}
}

// Batch is a sealed, ordered instruction sequence with its signers.
type Batch struct {
	instructions []solana.Instruction
	signers      []solana.PrivateKey
}

// Instructions returns a copy of the sequence.
func (b Batch) Instructions() []solana.Instruction {
	return append([]solana.Instruction(nil), b.instructions...)
}

func (b Batch) Signers() []solana.PrivateKey {
	return append([]solana.PrivateKey(nil), b.signers...)
}

func (b Batch) Len() int {
	return len(b.instructions)
}

// Instruction returns the i-th instruction without copying the sequence.
func (b Batch) Instruction(i int) solana.Instruction {
	return b.instructions[i]
}

// SignerKeys returns the public keys of the signers, payer first.
func (b Batch) SignerKeys() []solana.PublicKey {
	return lo.Map(b.signers, func(k solana.PrivateKey, _ int) solana.PublicKey {
		return k.PublicKey()
	})
}

// ComputeBudget sets the optional priority fee prefix.
type ComputeBudget struct {
	Units         uint32
	MicroLamports uint64
}

// Instructions returns the compute budget prefix; zero fields are omitted.
func (c ComputeBudget) Instructions() []solana.Instruction {
	var out []solana.Instruction
	if c.Units > 0 {
		out = append(out, computebudget.NewSetComputeUnitLimitInstruction(c.Units).Build())
	}
	if c.MicroLamports > 0 {
		out = append(out, computebudget.NewSetComputeUnitPriceInstruction(c.MicroLamports).Build())
	}
	return out
}

// Sign assembles and signs a transaction from instructions. signers[0] pays.
func Sign(
	instructions []solana.Instruction,
	signers []solana.PrivateKey,
	blockhash solana.Hash,
	budget ComputeBudget,
) (*solana.Transaction, error) {
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}
	if len(signers) == 0 {
		return nil, ErrNoSigners
	}

	prefix := budget.Instructions()
	all := make([]solana.Instruction, 0, len(prefix)+len(instructions))
	all = append(all, prefix...)
	all = append(all, instructions...)

	tx, err := solana.NewTransaction(
		all,
		blockhash,
		solana.TransactionPayer(signers[0].PublicKey()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for _, signer := range signers {
			if signer.PublicKey().Equals(key) {
				privateCopy := signer
				return &privateCopy
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return tx, nil
}
