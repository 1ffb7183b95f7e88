// =============================
// File: internal/bettingpool/assembler.go
// =============================
package bettingpool

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/rovshanmuradov/bettingpool/internal/blockchain"
	"github.com/rovshanmuradov/bettingpool/internal/blockchain/transaction"
	"github.com/rovshanmuradov/bettingpool/internal/utils/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds the assembler settings.
type Config struct {
	// Program overrides the betting pool program id.
	Program solana.PublicKey
	// ParallelProbes runs associated account probes concurrently.
	ParallelProbes bool
	// DryRun returns the built plan instead of submitting it.
	DryRun bool
}

// Assembler builds one transaction per operation and hands it to the
// submitter. Pool state is read fresh for every operation.
type Assembler struct {
	program   solana.PublicKey
	fetcher   blockchain.AccountFetcher
	rent      blockchain.RentCalculator
	submitter blockchain.Submitter
	resolver  *Resolver
	logger    *zap.Logger
	dryRun    bool
	newKey    func() (solana.PrivateKey, error)
}

func NewAssembler(
	fetcher blockchain.AccountFetcher,
	rent blockchain.RentCalculator,
	submitter blockchain.Submitter,
	cfg Config,
	log *zap.Logger,
) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{
		program:   programOrDefault(cfg.Program),
		fetcher:   fetcher,
		rent:      rent,
		submitter: submitter,
		resolver:  NewResolver(fetcher, log, cfg.ParallelProbes),
		logger:    log.Named("assembler"),
		dryRun:    cfg.DryRun,
		newKey:    solana.NewRandomPrivateKey,
	}
}

// Plan is a built but unsigned transaction.
type Plan struct {
	Batch transaction.Batch
	// Created is the address of the account the operation creates, if any.
	Created solana.PublicKey
}

type InitializePoolRequest struct {
	Authority  solana.PrivateKey
	EscrowMint solana.PublicKey
	Decimals   uint8
}

type TradeRequest struct {
	// Operator pays the fee and any associated account rent.
	Operator solana.PrivateKey
	Buyer    solana.PrivateKey
	Seller   solana.PrivateKey
	Pool     solana.PublicKey
	Args     TradeArgs
}

type MintToRequest struct {
	Authority   solana.PrivateKey
	Pool        solana.PublicKey
	Destination solana.PublicKey
	Amount      uint64
}

type TopUpRequest struct {
	Sender solana.PrivateKey
	To     solana.PublicKey
	// Amount in lamports; nil sends the token account rent-exempt minimum.
	Amount *uint64
}

type CreateMintRequest struct {
	Authority solana.PrivateKey
	Decimals  uint8
}

type SettleRequest struct {
	Authority   solana.PrivateKey
	Pool        solana.PublicKey
	WinningMint solana.PublicKey
}

// LoadPool reads and decodes the pool account.
func (a *Assembler) LoadPool(ctx context.Context, pool solana.PublicKey) (*PoolState, error) {
	acc, err := a.fetcher.GetAccount(ctx, pool)
	if err != nil {
		return nil, newError(KindQuery, "load pool", err)
	}
	if acc == nil {
		return nil, newError(KindValidation, "load pool", fmt.Errorf("%w: %s", ErrPoolNotFound, pool))
	}
	state, err := DecodePoolState(acc.Data)
	if err != nil {
		return nil, wrap(KindValidation, "load pool", err)
	}
	return state, nil
}

// BuildInitializePool creates fresh pool, escrow and outcome mint keys and
// emits the Initialize instruction.
func (a *Assembler) BuildInitializePool(trace *Trace, req InitializePoolRequest) (*Plan, error) {
	if err := checkKey("authority", req.Authority); err != nil {
		return nil, err
	}

	keys := make([]solana.PrivateKey, 4)
	for i := range keys {
		k, err := a.newKey()
		if err != nil {
			return nil, newError(KindValidation, "generate keys", err)
		}
		keys[i] = k
	}
	pool, escrow, longMint, shortMint := keys[0], keys[1], keys[2], keys[3]
	authority := req.Authority.PublicKey()
	trace.Step("Gathered accounts")

	ix := NewInitializeInstruction(InitializeAccounts{
		Program:         a.program,
		Pool:            pool.PublicKey(),
		EscrowMint:      req.EscrowMint,
		Escrow:          escrow.PublicKey(),
		LongMint:        longMint.PublicKey(),
		ShortMint:       shortMint.PublicKey(),
		MintAuthority:   authority,
		UpdateAuthority: authority,
	}, req.Decimals)
	trace.Step("Creating betting pool")

	b := transaction.NewBuilder().AddSigner(req.Authority)
	for _, k := range keys {
		b.AddSigner(k)
	}
	b.AddInstruction(ix)

	return &Plan{Batch: b.Seal(), Created: pool.PublicKey()}, nil
}

// BuildTrade reads the pool, resolves the six associated accounts of buyer
// and seller and emits the Trade instruction after any creations.
func (a *Assembler) BuildTrade(ctx context.Context, trace *Trace, req TradeRequest) (*Plan, error) {
	if err := checkKey("operator", req.Operator); err != nil {
		return nil, err
	}
	if err := checkKey("buyer", req.Buyer); err != nil {
		return nil, err
	}
	if err := checkKey("seller", req.Seller); err != nil {
		return nil, err
	}

	pool, err := a.LoadPool(ctx, req.Pool)
	if err != nil {
		return nil, err
	}
	trace.Step("Loaded pool %s", req.Pool)

	escrowAuthority, err := EscrowAuthority(a.program, pool.LongMint, pool.ShortMint)
	if err != nil {
		return nil, wrap(KindDerivation, "derive escrow authority", err)
	}
	buyer, seller := req.Buyer.PublicKey(), req.Seller.PublicKey()
	trace.Step("Gathered accounts")

	pass := NewPass(trace)
	keys := make([]AssociatedKey, 0, 6)
	for _, owner := range []solana.PublicKey{buyer, seller} {
		for _, mint := range []solana.PublicKey{pool.LongMint, pool.ShortMint, pool.EscrowMint} {
			keys = append(keys, AssociatedKey{Owner: owner, Mint: mint})
		}
	}
	res, err := a.resolver.Resolve(ctx, pass, req.Operator.PublicKey(), keys)
	if err != nil {
		return nil, wrap(KindQuery, "resolve associated accounts", err)
	}

	ix := NewTradeInstruction(TradeAccounts{
		Program:         a.program,
		Pool:            req.Pool,
		Escrow:          pool.Escrow,
		LongMint:        pool.LongMint,
		ShortMint:       pool.ShortMint,
		Buyer:           buyer,
		Seller:          seller,
		BuyerEscrow:     res[2].Address,
		SellerEscrow:    res[5].Address,
		BuyerLong:       res[0].Address,
		BuyerShort:      res[1].Address,
		SellerLong:      res[3].Address,
		SellerShort:     res[4].Address,
		EscrowAuthority: escrowAuthority,
	}, req.Args)

	pass.Builder().
		AddInstruction(ix).
		AddSigner(req.Operator).
		AddSigner(req.Buyer).
		AddSigner(req.Seller)

	return &Plan{Batch: pass.Seal()}, nil
}

// BuildMintTo mints pool escrow tokens into the destination's associated
// account, creating it first if needed.
func (a *Assembler) BuildMintTo(ctx context.Context, trace *Trace, req MintToRequest) (*Plan, error) {
	if err := checkKey("authority", req.Authority); err != nil {
		return nil, err
	}

	pool, err := a.LoadPool(ctx, req.Pool)
	if err != nil {
		return nil, err
	}
	trace.Step("Loaded pool %s", req.Pool)

	pass := NewPass(trace)
	authority := req.Authority.PublicKey()
	res, err := a.resolver.Resolve(ctx, pass, authority, []AssociatedKey{{Owner: req.Destination, Mint: pool.EscrowMint}})
	if err != nil {
		return nil, wrap(KindQuery, "resolve associated accounts", err)
	}

	pass.Builder().
		AddInstruction(token.NewMintToInstruction(req.Amount, pool.EscrowMint, res[0].Address, authority, nil).Build()).
		AddSigner(req.Authority)
	trace.Step("Minting %d to %s", req.Amount, res[0].Address)

	return &Plan{Batch: pass.Seal()}, nil
}

// BuildTopUp emits a native transfer.
func (a *Assembler) BuildTopUp(ctx context.Context, trace *Trace, req TopUpRequest) (*Plan, error) {
	if err := checkKey("sender", req.Sender); err != nil {
		return nil, err
	}
	trace.Step("Gathered accounts")

	var lamports uint64
	if req.Amount != nil {
		lamports = *req.Amount
	} else {
		minimum, err := a.rentExempt(ctx, TokenAccountSize)
		if err != nil {
			return nil, err
		}
		lamports = minimum
	}
	trace.Step("Fetched lamports: %s SOL", LamportsToSOL(lamports))

	b := transaction.NewBuilder().
		AddSigner(req.Sender).
		AddInstruction(system.NewTransferInstruction(lamports, req.Sender.PublicKey(), req.To).Build())
	trace.Step("Transferring funds")

	return &Plan{Batch: b.Seal()}, nil
}

// BuildCreateMint allocates and initializes a new mint owned by the token
// program, with the authority as mint and freeze authority.
func (a *Assembler) BuildCreateMint(ctx context.Context, trace *Trace, req CreateMintRequest) (*Plan, error) {
	if err := checkKey("authority", req.Authority); err != nil {
		return nil, err
	}
	mint, err := a.newKey()
	if err != nil {
		return nil, newError(KindValidation, "generate keys", err)
	}
	authority := req.Authority.PublicKey()
	trace.Step("Gathered accounts")

	lamports, err := a.rentExempt(ctx, MintAccountSize)
	if err != nil {
		return nil, err
	}
	trace.Step("Fetched minimum rent exemption balance: %s SOL", LamportsToSOL(lamports))

	b := transaction.NewBuilder().
		AddSigner(req.Authority).
		AddSigner(mint).
		AddInstruction(system.NewCreateAccountInstruction(
			lamports, MintAccountSize, TokenProgramID, authority, mint.PublicKey(),
		).Build()).
		AddInstruction(token.NewInitializeMintInstruction(
			req.Decimals, authority, authority, mint.PublicKey(), RentSysvarID,
		).Build())
	trace.Step("Creating mint account %s with %d bytes", mint.PublicKey(), MintAccountSize)

	return &Plan{Batch: b.Seal(), Created: mint.PublicKey()}, nil
}

// BuildSettle records the winning mint of an unsettled pool.
func (a *Assembler) BuildSettle(ctx context.Context, trace *Trace, req SettleRequest) (*Plan, error) {
	if err := checkKey("authority", req.Authority); err != nil {
		return nil, err
	}

	pool, err := a.LoadPool(ctx, req.Pool)
	if err != nil {
		return nil, err
	}
	trace.Step("Loaded pool %s", req.Pool)

	if pool.Settled {
		return nil, newError(KindValidation, "check pool", fmt.Errorf("%w: %s", ErrPoolSettled, req.Pool))
	}
	if !pool.HasMint(req.WinningMint) {
		return nil, newError(KindValidation, "check pool", fmt.Errorf("%w: %s", ErrNotPoolMint, req.WinningMint))
	}

	b := transaction.NewBuilder().
		AddSigner(req.Authority).
		AddInstruction(NewSettleInstruction(a.program, req.Pool, req.WinningMint, req.Authority.PublicKey()))
	trace.Step("Settling pool with winning mint %s", req.WinningMint)

	return &Plan{Batch: b.Seal()}, nil
}

// InitializePool creates a new pool and returns its address in Created.
func (a *Assembler) InitializePool(ctx context.Context, req InitializePoolRequest) *Result {
	trace := a.startTrace("initialize-pool", solana.PublicKey{})
	plan, err := a.BuildInitializePool(trace, req)
	if err != nil {
		return trace.Fail(KindValidation, "build initialize", err)
	}
	return a.submit(ctx, trace, plan, fmt.Sprintf("Successfully created betting pool %s", plan.Created))
}

// Trade settles a matched order between buyer and seller.
func (a *Assembler) Trade(ctx context.Context, req TradeRequest) *Result {
	trace := a.startTrace("trade", req.Pool)
	plan, err := a.BuildTrade(ctx, trace, req)
	if err != nil {
		return trace.Fail(KindValidation, "build trade", err)
	}
	return a.submit(ctx, trace, plan, "Trade successful")
}

func (a *Assembler) MintTo(ctx context.Context, req MintToRequest) *Result {
	trace := a.startTrace("mint-to", req.Pool)
	plan, err := a.BuildMintTo(ctx, trace, req)
	if err != nil {
		return trace.Fail(KindValidation, "build mint-to", err)
	}
	return a.submit(ctx, trace, plan, "Success")
}

func (a *Assembler) TopUp(ctx context.Context, req TopUpRequest) *Result {
	trace := a.startTrace("top-up", solana.PublicKey{})
	plan, err := a.BuildTopUp(ctx, trace, req)
	if err != nil {
		return trace.Fail(KindValidation, "build top-up", err)
	}
	return a.submit(ctx, trace, plan, fmt.Sprintf("Successfully sent funds to %s", req.To))
}

func (a *Assembler) CreateMint(ctx context.Context, req CreateMintRequest) *Result {
	trace := a.startTrace("create-mint", solana.PublicKey{})
	plan, err := a.BuildCreateMint(ctx, trace, req)
	if err != nil {
		return trace.Fail(KindValidation, "build create-mint", err)
	}
	return a.submit(ctx, trace, plan, fmt.Sprintf("Successfully created mint %s", plan.Created))
}

func (a *Assembler) Settle(ctx context.Context, req SettleRequest) *Result {
	trace := a.startTrace("settle", req.Pool)
	plan, err := a.BuildSettle(ctx, trace, req)
	if err != nil {
		return trace.Fail(KindValidation, "build settle", err)
	}
	return a.submit(ctx, trace, plan, "Pool settled")
}

// startTrace opens the trace of one operation; pool is tagged when set.
func (a *Assembler) startTrace(operation string, pool solana.PublicKey) *Trace {
	opLogger := logger.Operation(a.logger, operation)
	if !pool.IsZero() {
		opLogger = logger.Pool(opLogger, pool.String())
	}
	return NewTrace(opLogger)
}

func (a *Assembler) submit(ctx context.Context, trace *Trace, plan *Plan, success string) *Result {
	if plan.Batch.Len() == 0 {
		return trace.Fail(KindValidation, "submit transaction", ErrEmptyInstructions)
	}
	if a.dryRun {
		view, err := plan.View(a.program)
		if err != nil {
			return trace.Fail(KindValidation, "render plan", err)
		}
		trace.Step("Dry run: %d instructions not submitted", plan.Batch.Len())
		return trace.Preview(view, plan.Created)
	}
	if a.submitter == nil {
		return trace.Fail(KindSubmission, "submit transaction", ErrNoSubmitter)
	}

	sig, err := a.submitter.Submit(ctx, plan.Batch.Instructions(), plan.Batch.Signers())
	if err != nil {
		return trace.Fail(KindSubmission, "submit transaction", err)
	}
	logger.Transaction(trace.logger, sig.String()).Info("Transaction submitted",
		zap.Int("instructions", plan.Batch.Len()))
	trace.Step("%s", success)
	return trace.Succeed(sig, plan.Created)
}

func (a *Assembler) rentExempt(ctx context.Context, size uint64) (uint64, error) {
	if a.rent == nil {
		return 0, newError(KindQuery, "rent exemption", fmt.Errorf("no rent calculator configured"))
	}
	lamports, err := a.rent.GetMinimumBalanceForRentExemption(ctx, size)
	if err != nil {
		return 0, newError(KindQuery, "rent exemption", err)
	}
	return lamports, nil
}

func checkKey(name string, key solana.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return newError(KindValidation, "check "+name,
			fmt.Errorf("%w: %s is %d bytes, expected %d", ErrInvalidKey, name, len(key), ed25519.PrivateKeySize))
	}
	return nil
}

// LamportsToSOL formats lamports as a decimal SOL amount.
func LamportsToSOL(lamports uint64) string {
	return decimal.NewFromUint64(lamports).Shift(-9).String()
}
