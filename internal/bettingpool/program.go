// =============================
// File: internal/bettingpool/program.go
// =============================
package bettingpool

import "github.com/gagliardetto/solana-go"

// Program identifiers referenced by every instruction this package emits.
var (
	ProgramID                = solana.MustPublicKeyFromBase58("DnVoDXeLS9wmWWRk2LZZhWP4y7TxcVrwYhDaY7a6PS53")
	SystemProgramID          = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	RentSysvarID             = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
	TokenProgramID           = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// Opcodes of the betting pool program.
const (
	OpInitialize uint8 = 0
	OpTrade      uint8 = 1
	OpSettle     uint8 = 2
)

// Account sizes owned by the token program.
const (
	MintAccountSize  uint64 = 82
	TokenAccountSize uint64 = 165
)
