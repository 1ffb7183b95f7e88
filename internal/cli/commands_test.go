package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/bettingpool/internal/bettingpool"
	"github.com/rovshanmuradov/bettingpool/internal/blockchain"
	"github.com/rovshanmuradov/bettingpool/internal/config"
	"github.com/rovshanmuradov/bettingpool/internal/utils/logger"
	"github.com/rovshanmuradov/bettingpool/internal/utils/metrics"
)

// fakeLedger is an in-memory blockchain.Client.
type fakeLedger struct {
	mu        sync.Mutex
	accounts  map[solana.PublicKey]*blockchain.Account
	balance   uint64
	rent      uint64
	submitted [][]solana.Instruction
	payers    []solana.PublicKey
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts: map[solana.PublicKey]*blockchain.Account{},
		rent:     2039280,
	}
}

func (f *fakeLedger) GetAccount(_ context.Context, key solana.PublicKey) (*blockchain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[key], nil
}

func (f *fakeLedger) GetMinimumBalanceForRentExemption(context.Context, uint64) (uint64, error) {
	return f.rent, nil
}

func (f *fakeLedger) GetBalance(context.Context, solana.PublicKey) (uint64, error) {
	return f.balance, nil
}

func (f *fakeLedger) Submit(_ context.Context, ixs []solana.Instruction, signers []solana.PrivateKey) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, ixs)
	f.payers = append(f.payers, signers[0].PublicKey())
	return solana.Signature{1, 2, 3}, nil
}

func run(t *testing.T, ledger *fakeLedger, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(&out, func(*config.Config, *logger.Logger, *metrics.Collector) blockchain.Client {
		return ledger
	})
	root.SetArgs(append([]string{
		"--log-file", filepath.Join(t.TempDir(), "cli.log"),
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
	}, args...))
	return &out, root.Execute()
}

func decodeResult(t *testing.T, out *bytes.Buffer) bettingpool.Result {
	t.Helper()
	var res bettingpool.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	return res
}

func operatorKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	t.Setenv("BETTING_POOL_OPERATOR_KEY", base58.Encode(key))
	return key
}

func TestWalletNew(t *testing.T) {
	out, err := run(t, newFakeLedger(), "wallet", "new")
	require.NoError(t, err)

	var kp struct {
		Address    string `json:"address"`
		PrivateKey string `json:"private_key"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &kp))
	key, err := solana.PrivateKeyFromBase58(kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, kp.Address, key.PublicKey().String())
}

func TestWalletBalance(t *testing.T) {
	operator := operatorKey(t)
	ledger := newFakeLedger()
	ledger.balance = 1_500_000_000

	out, err := run(t, ledger, "wallet", "balance")
	require.NoError(t, err)

	var view balanceView
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, operator.PublicKey().String(), view.Address)
	assert.Equal(t, uint64(1_500_000_000), view.Lamports)
	assert.Equal(t, "1.5", view.SOL)
}

func TestCreateMintCommand(t *testing.T) {
	operator := operatorKey(t)
	ledger := newFakeLedger()

	out, err := run(t, ledger, "create-mint", "--decimals", "6")
	require.NoError(t, err)

	res := decodeResult(t, out)
	assert.Equal(t, bettingpool.StatusOK, res.Status)
	assert.NotEmpty(t, res.Created)
	assert.Equal(t, solana.Signature{1, 2, 3}.String(), res.Signature)
	require.Len(t, ledger.submitted, 1)
	assert.Len(t, ledger.submitted[0], 2)
	assert.Equal(t, operator.PublicKey(), ledger.payers[0])
}

func TestTopUpDefaultsToRent(t *testing.T) {
	operatorKey(t)
	ledger := newFakeLedger()
	to := solana.NewWallet().PublicKey()

	out, err := run(t, ledger, "top-up", "--to", to.String())
	require.NoError(t, err)

	res := decodeResult(t, out)
	assert.Contains(t, res.Trace, "Fetched lamports: 0.00203928 SOL")
	require.Len(t, ledger.submitted, 1)
}

func TestTradeMissingPool(t *testing.T) {
	operatorKey(t)
	buyer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	seller, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	ledger := newFakeLedger()

	out, err := run(t, ledger, "trade",
		"--pool", solana.NewWallet().PublicKey().String(),
		"--buyer", base58.Encode(buyer),
		"--seller", base58.Encode(seller),
		"--size", "10", "--buyer-price", "60", "--seller-price", "40",
	)
	assert.ErrorIs(t, err, ErrFailed)

	res := decodeResult(t, out)
	assert.Equal(t, bettingpool.StatusFailed, res.Status)
	assert.Equal(t, "validation", res.ErrorKind)
	assert.Empty(t, ledger.submitted)
}

func TestTradeRejectsBadAmount(t *testing.T) {
	operatorKey(t)
	buyer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	ledger := newFakeLedger()

	out, err := run(t, ledger, "trade",
		"--pool", solana.NewWallet().PublicKey().String(),
		"--buyer", base58.Encode(buyer),
		"--seller", base58.Encode(buyer),
		"--size", "18446744073709551616", "--buyer-price", "1", "--seller-price", "1",
	)
	assert.ErrorIs(t, err, ErrFailed)

	res := decodeResult(t, out)
	assert.Equal(t, "validation", res.ErrorKind)
	assert.Contains(t, res.Msg, "amount does not fit in u64")
	assert.Empty(t, ledger.submitted)
}

func TestPoolCommand(t *testing.T) {
	ledger := newFakeLedger()
	poolKey := solana.NewWallet().PublicKey()
	state := &bettingpool.PoolState{
		Decimals:    2,
		Circulation: 77,
		EscrowMint:  solana.NewWallet().PublicKey(),
		Escrow:      solana.NewWallet().PublicKey(),
		LongMint:    solana.NewWallet().PublicKey(),
		ShortMint:   solana.NewWallet().PublicKey(),
	}
	ledger.accounts[poolKey] = &blockchain.Account{Owner: bettingpool.ProgramID, Data: state.Encode()}

	out, err := run(t, ledger, "pool", poolKey.String())
	require.NoError(t, err)

	var view bettingpool.PoolView
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, state.View(), view)

	out, err = run(t, ledger, "pool", solana.NewWallet().PublicKey().String())
	assert.ErrorIs(t, err, ErrFailed)
	assert.Equal(t, bettingpool.StatusFailed, decodeResult(t, out).Status)
}

func TestMissingOperator(t *testing.T) {
	t.Setenv("BETTING_POOL_OPERATOR_KEY", "")
	ledger := newFakeLedger()

	out, err := run(t, ledger, "create-mint")
	assert.ErrorIs(t, err, ErrFailed)
	res := decodeResult(t, out)
	assert.Contains(t, res.Msg, "operator_key is not configured")
}

func TestMetricsTextfile(t *testing.T) {
	operatorKey(t)
	path := filepath.Join(t.TempDir(), "bettingpool.prom")
	t.Setenv("BETTING_POOL_METRICS_FILE", path)

	_, err := run(t, newFakeLedger(), "create-mint")
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `operation="create-mint",status="success"`)
}

func TestOperationLogging(t *testing.T) {
	operatorKey(t)
	path := filepath.Join(t.TempDir(), "ops.log")

	_, err := run(t, newFakeLedger(), "--debug", "--log-file", path, "create-mint")
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	logs := string(raw)
	assert.Contains(t, logs, "Operation completed")
	assert.Contains(t, logs, "Transaction submitted")
	assert.Contains(t, logs, `"operation":"create-mint"`)
	assert.Contains(t, logs, `"component":"bettingpool"`)
	assert.Contains(t, logs, `"tx_hash":"`+solana.Signature{1, 2, 3}.String()+`"`)
}

func TestMetricsTextfileRecordsFailure(t *testing.T) {
	operatorKey(t)
	path := filepath.Join(t.TempDir(), "bettingpool.prom")
	t.Setenv("BETTING_POOL_METRICS_FILE", path)
	buyer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	_, err = run(t, newFakeLedger(), "trade",
		"--pool", solana.NewWallet().PublicKey().String(),
		"--buyer", base58.Encode(buyer),
		"--seller", base58.Encode(buyer),
		"--size", "1", "--buyer-price", "1", "--seller-price", "1",
	)
	assert.ErrorIs(t, err, ErrFailed)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `operation="trade",status="failed"`)
}

func TestDryRunPrintsPlan(t *testing.T) {
	operator := operatorKey(t)
	ledger := newFakeLedger()

	out, err := run(t, ledger, "--dry-run", "create-mint", "--decimals", "2")
	require.NoError(t, err)
	assert.Empty(t, ledger.submitted)

	res := decodeResult(t, out)
	assert.Equal(t, bettingpool.StatusOK, res.Status)
	assert.Empty(t, res.Signature)
	assert.NotEmpty(t, res.Created)
	require.NotNil(t, res.Plan)
	require.Len(t, res.Plan.Instructions, 2)
	assert.Equal(t, solana.SystemProgramID.String(), res.Plan.Instructions[0].Program)
	assert.Equal(t, solana.TokenProgramID.String(), res.Plan.Instructions[1].Program)
	assert.Equal(t, []string{operator.PublicKey().String(), res.Created}, res.Plan.Signers)
}

func TestMintToDestinationIsOwner(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{}, nil)
	cmd, _, err := root.Find([]string{"mint-to"})
	require.NoError(t, err)

	to := cmd.Flags().Lookup("to")
	require.NotNil(t, to)
	assert.Equal(t, "owner of the destination associated token account", to.Usage)
}
