// =============================
// File: internal/bettingpool/instructions.go
// =============================
package bettingpool

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/bettingpool/internal/utils/binary"
)

// Payload layouts, one per opcode.
var (
	initializePayload = binary.MustLayout("initialize", 2, binary.Sequential(
		binary.Field{Name: "opcode", Kind: binary.KindUint8},
		binary.Field{Name: "decimals", Kind: binary.KindUint8},
	)...)

	tradePayload = binary.MustLayout("trade", 25, binary.Sequential(
		binary.Field{Name: "opcode", Kind: binary.KindUint8},
		binary.Field{Name: "size", Kind: binary.KindUint64},
		binary.Field{Name: "buyer_price", Kind: binary.KindUint64},
		binary.Field{Name: "seller_price", Kind: binary.KindUint64},
	)...)

	settlePayload = binary.MustLayout("settle", 1, binary.Sequential(
		binary.Field{Name: "opcode", Kind: binary.KindUint8},
	)...)
)

var maxUint64 = new(big.Int).SetUint64(^uint64(0))

// InitializeAccounts lists the accounts of the Initialize instruction.
type InitializeAccounts struct {
	Program         solana.PublicKey
	Pool            solana.PublicKey
	EscrowMint      solana.PublicKey
	Escrow          solana.PublicKey
	LongMint        solana.PublicKey
	ShortMint       solana.PublicKey
	MintAuthority   solana.PublicKey
	UpdateAuthority solana.PublicKey
}

// TradeAccounts lists the accounts of the Trade instruction. The six token
// accounts are the associated accounts of buyer and seller.
type TradeAccounts struct {
	Program         solana.PublicKey
	Pool            solana.PublicKey
	Escrow          solana.PublicKey
	LongMint        solana.PublicKey
	ShortMint       solana.PublicKey
	Buyer           solana.PublicKey
	Seller          solana.PublicKey
	BuyerEscrow     solana.PublicKey
	SellerEscrow    solana.PublicKey
	BuyerLong       solana.PublicKey
	BuyerShort      solana.PublicKey
	SellerLong      solana.PublicKey
	SellerShort     solana.PublicKey
	EscrowAuthority solana.PublicKey
}

// TradeArgs are the trade parameters, passed through to the program as is.
type TradeArgs struct {
	Size        uint64 `json:"size"`
	BuyerPrice  uint64 `json:"buyer_price"`
	SellerPrice uint64 `json:"seller_price"`
}

// NewTradeArgs range-checks arbitrary precision inputs into TradeArgs.
func NewTradeArgs(size, buyerPrice, sellerPrice *big.Int) (TradeArgs, error) {
	var args TradeArgs
	var err error
	if args.Size, err = toU64("size", size); err != nil {
		return TradeArgs{}, err
	}
	if args.BuyerPrice, err = toU64("buyer_price", buyerPrice); err != nil {
		return TradeArgs{}, err
	}
	if args.SellerPrice, err = toU64("seller_price", sellerPrice); err != nil {
		return TradeArgs{}, err
	}
	return args, nil
}

// ParseAmount parses a base-10 integer and checks that it fits in u64.
func ParseAmount(name, s string) (uint64, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, newError(KindValidation, "parse "+name, fmt.Errorf("%q is not an integer", s))
	}
	return toU64(name, v)
}

func toU64(name string, v *big.Int) (uint64, error) {
	if v == nil || v.Sign() < 0 || v.Cmp(maxUint64) > 0 {
		return 0, newError(KindValidation, "check "+name, fmt.Errorf("%w: %s=%v", ErrAmountOutOfRange, name, v))
	}
	return v.Uint64(), nil
}

// NewInitializeInstruction encodes opcode 0.
func NewInitializeInstruction(accounts InitializeAccounts, decimals uint8) solana.Instruction {
	data := initializePayload.NewRecord().
		SetUint8("opcode", OpInitialize).
		SetUint8("decimals", decimals).
		Bytes()

	// Accounts in the order the program reads them
	metas := []*solana.AccountMeta{
		{PublicKey: accounts.Pool, IsSigner: true, IsWritable: true},
		{PublicKey: accounts.EscrowMint},
		{PublicKey: accounts.Escrow, IsSigner: true, IsWritable: true},
		{PublicKey: accounts.LongMint, IsSigner: true},
		{PublicKey: accounts.ShortMint, IsSigner: true},
		{PublicKey: accounts.MintAuthority, IsSigner: true},
		{PublicKey: accounts.UpdateAuthority, IsSigner: true},
		{PublicKey: TokenProgramID},
		{PublicKey: SystemProgramID},
		{PublicKey: RentSysvarID},
	}

	return solana.NewInstruction(programOrDefault(accounts.Program), metas, data)
}

// NewTradeInstruction encodes opcode 1.
func NewTradeInstruction(accounts TradeAccounts, args TradeArgs) solana.Instruction {
	data := tradePayload.NewRecord().
		SetUint8("opcode", OpTrade).
		SetUint64("size", args.Size).
		SetUint64("buyer_price", args.BuyerPrice).
		SetUint64("seller_price", args.SellerPrice).
		Bytes()

	metas := []*solana.AccountMeta{
		{PublicKey: accounts.Pool, IsWritable: true},
		{PublicKey: accounts.Escrow, IsWritable: true},
		{PublicKey: accounts.LongMint, IsWritable: true},
		{PublicKey: accounts.ShortMint, IsWritable: true},
		{PublicKey: accounts.Buyer, IsSigner: true},
		{PublicKey: accounts.Seller, IsSigner: true},
		{PublicKey: accounts.BuyerEscrow, IsWritable: true},
		{PublicKey: accounts.SellerEscrow, IsWritable: true},
		{PublicKey: accounts.BuyerLong, IsWritable: true},
		{PublicKey: accounts.BuyerShort, IsWritable: true},
		{PublicKey: accounts.SellerLong, IsWritable: true},
		{PublicKey: accounts.SellerShort, IsWritable: true},
		{PublicKey: accounts.EscrowAuthority},
		{PublicKey: TokenProgramID},
	}

	return solana.NewInstruction(programOrDefault(accounts.Program), metas, data)
}

// NewSettleInstruction encodes opcode 2, which records the winning mint.
func NewSettleInstruction(program, pool, winningMint, updateAuthority solana.PublicKey) solana.Instruction {
	data := settlePayload.NewRecord().SetUint8("opcode", OpSettle).Bytes()

	metas := []*solana.AccountMeta{
		{PublicKey: pool, IsWritable: true},
		{PublicKey: winningMint},
		{PublicKey: updateAuthority, IsSigner: true},
	}

	return solana.NewInstruction(programOrDefault(program), metas, data)
}

// NewCreateAssociatedAccountInstruction creates account for (owner, mint),
// paid by payer. The associated token program takes an empty payload.
func NewCreateAssociatedAccountInstruction(payer, account, owner, mint solana.PublicKey) solana.Instruction {
	metas := []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: account, IsWritable: true},
		{PublicKey: owner},
		{PublicKey: mint},
		{PublicKey: SystemProgramID},
		{PublicKey: TokenProgramID},
		{PublicKey: RentSysvarID},
	}

	return solana.NewInstruction(AssociatedTokenProgramID, metas, []byte{})
}

// DecodedInstruction is a betting pool payload read back into typed fields.
type DecodedInstruction struct {
	Opcode   uint8     `json:"opcode"`
	Decimals uint8     `json:"decimals,omitempty"`
	Trade    TradeArgs `json:"trade"`
}

// DecodeInstructionData parses a payload produced by this package.
func DecodeInstructionData(data []byte) (*DecodedInstruction, error) {
	if len(data) == 0 {
		return nil, newError(KindValidation, "decode instruction", ErrPayloadLength)
	}

	out := &DecodedInstruction{Opcode: data[0]}
	switch data[0] {
	case OpInitialize:
		rec, err := initializePayload.Decode(data)
		if err != nil {
			return nil, newError(KindValidation, "decode initialize", fmt.Errorf("%w: %v", ErrPayloadLength, err))
		}
		out.Decimals = rec.Uint8("decimals")
	case OpTrade:
		rec, err := tradePayload.Decode(data)
		if err != nil {
			return nil, newError(KindValidation, "decode trade", fmt.Errorf("%w: %v", ErrPayloadLength, err))
		}
		out.Trade = TradeArgs{
			Size:        rec.Uint64("size"),
			BuyerPrice:  rec.Uint64("buyer_price"),
			SellerPrice: rec.Uint64("seller_price"),
		}
	case OpSettle:
		if _, err := settlePayload.Decode(data); err != nil {
			return nil, newError(KindValidation, "decode settle", fmt.Errorf("%w: %v", ErrPayloadLength, err))
		}
	default:
		return nil, newError(KindValidation, "decode instruction", fmt.Errorf("%w: %d", ErrInvalidOpcode, data[0]))
	}
	return out, nil
}

func programOrDefault(program solana.PublicKey) solana.PublicKey {
	if program.IsZero() {
		return ProgramID
	}
	return program
}
