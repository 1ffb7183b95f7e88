// =============================
// File: internal/bettingpool/state.go
// =============================
package bettingpool

import (
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/rovshanmuradov/bettingpool/internal/utils/binary"
)

// PoolStateSize is 1 + 8 + 1 + 5*32.
const PoolStateSize = 170

// PoolLayout is the on-chain pool record, integers little-endian.
var PoolLayout = binary.MustLayout("pool", PoolStateSize, binary.Sequential(
	binary.Field{Name: "decimals", Kind: binary.KindUint8},
	binary.Field{Name: "circulation", Kind: binary.KindUint64},
	binary.Field{Name: "settled", Kind: binary.KindBool},
	binary.Field{Name: "escrow_mint", Kind: binary.KindPubKey},
	binary.Field{Name: "escrow", Kind: binary.KindPubKey},
	binary.Field{Name: "long_mint", Kind: binary.KindPubKey},
	binary.Field{Name: "short_mint", Kind: binary.KindPubKey},
	binary.Field{Name: "winning_side", Kind: binary.KindPubKey},
)...)

// PoolState is the decoded pool record.
type PoolState struct {
	Decimals    uint8
	Circulation uint64
	Settled     bool
	EscrowMint  solana.PublicKey
	Escrow      solana.PublicKey
	LongMint    solana.PublicKey
	ShortMint   solana.PublicKey
	WinningSide solana.PublicKey
}

// DecodePoolState decodes raw account data. Anything other than exactly
// PoolStateSize bytes is rejected.
func DecodePoolState(raw []byte) (*PoolState, error) {
	rec, err := PoolLayout.Decode(raw)
	if err != nil {
		return nil, newError(KindValidation, "decode pool state", err)
	}
	return &PoolState{
		Decimals:    rec.Uint8("decimals"),
		Circulation: rec.Uint64("circulation"),
		Settled:     rec.Bool("settled"),
		EscrowMint:  rec.PubKey("escrow_mint"),
		Escrow:      rec.PubKey("escrow"),
		LongMint:    rec.PubKey("long_mint"),
		ShortMint:   rec.PubKey("short_mint"),
		WinningSide: rec.PubKey("winning_side"),
	}, nil
}

// Encode writes the state back in pool layout.
func (s *PoolState) Encode() []byte {
	return PoolLayout.NewRecord().
		SetUint8("decimals", s.Decimals).
		SetUint64("circulation", s.Circulation).
		SetBool("settled", s.Settled).
		SetPubKey("escrow_mint", s.EscrowMint).
		SetPubKey("escrow", s.Escrow).
		SetPubKey("long_mint", s.LongMint).
		SetPubKey("short_mint", s.ShortMint).
		SetPubKey("winning_side", s.WinningSide).
		Bytes()
}

// Addresses returns the base58 text of the five addresses in layout order.
func (s *PoolState) Addresses() []string {
	keys := []solana.PublicKey{s.EscrowMint, s.Escrow, s.LongMint, s.ShortMint, s.WinningSide}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = base58.Encode(k[:])
	}
	return out
}

// HasMint reports whether mint is the pool's long or short mint.
func (s *PoolState) HasMint(mint solana.PublicKey) bool {
	return mint.Equals(s.LongMint) || mint.Equals(s.ShortMint)
}

// PoolView is the JSON form of a pool for CLI output.
type PoolView struct {
	Decimals    uint8  `json:"decimals"`
	Circulation uint64 `json:"circulation"`
	Settled     bool   `json:"settled"`
	EscrowMint  string `json:"escrow_mint"`
	Escrow      string `json:"escrow"`
	LongMint    string `json:"long_mint"`
	ShortMint   string `json:"short_mint"`
	WinningSide string `json:"winning_side"`
}

func (s *PoolState) View() PoolView {
	a := s.Addresses()
	return PoolView{
		Decimals:    s.Decimals,
		Circulation: s.Circulation,
		Settled:     s.Settled,
		EscrowMint:  a[0],
		Escrow:      a[1],
		LongMint:    a[2],
		ShortMint:   a[3],
		WinningSide: a[4],
	}
}
