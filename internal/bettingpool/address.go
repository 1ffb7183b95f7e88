// =============================
// File: internal/bettingpool/address.go
// =============================
package bettingpool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	MaxSeeds      = solana.MaxSeeds
	MaxSeedLength = solana.MaxSeedLength
)

// CreateAddress hashes seeds with the owning program. ok is false when the
// hash lands on the ed25519 curve and therefore could have a private key.
func CreateAddress(seeds [][]byte, program solana.PublicKey) (addr solana.PublicKey, ok bool, err error) {
	if err := checkSeeds(seeds, MaxSeeds); err != nil {
		return solana.PublicKey{}, false, err
	}
	// Seeds are already checked, so the only remaining failure is on-curve.
	addr, err = solana.CreateProgramAddress(seeds, program)
	if err != nil {
		return solana.PublicKey{}, false, nil
	}
	return addr, true, nil
}

// Derive finds the first bump, counting down from 255, whose address is off
// the curve. One slot is reserved for the bump itself.
func Derive(seeds [][]byte, program solana.PublicKey) (solana.PublicKey, uint8, error) {
	if err := checkSeeds(seeds, MaxSeeds-1); err != nil {
		return solana.PublicKey{}, 0, err
	}

	withBump := make([][]byte, len(seeds), len(seeds)+1)
	copy(withBump, seeds)

	// FindProgramAddress stops at bump 1.
	if addr, bump, err := solana.FindProgramAddress(withBump, program); err == nil {
		return addr, bump, nil
	}
	addr, ok, err := CreateAddress(append(withBump, []byte{0}), program)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	if !ok {
		return solana.PublicKey{}, 0, newError(KindDerivation, "derive address", ErrNoViableBump)
	}
	return addr, 0, nil
}

// AssociatedAccountAddress derives the token account holding mint for owner.
func AssociatedAccountAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := Derive([][]byte{owner[:], TokenProgramID[:], mint[:]}, AssociatedTokenProgramID)
	return addr, err
}

// EscrowAuthority derives the authority that signs for the pool's escrow.
func EscrowAuthority(program, longMint, shortMint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := Derive([][]byte{longMint[:], shortMint[:], TokenProgramID[:], program[:]}, program)
	return addr, err
}

func checkSeeds(seeds [][]byte, limit int) error {
	if len(seeds) > limit {
		return newError(KindValidation, "check seeds",
			fmt.Errorf("%w: %d > %d", ErrTooManySeeds, len(seeds), limit))
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return newError(KindValidation, "check seeds",
				fmt.Errorf("%w: seed %d is %d bytes", ErrSeedTooLong, i, len(s)))
		}
	}
	return nil
}
