// internal/cli/runner.go
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bettingpool/internal/bettingpool"
	"github.com/rovshanmuradov/bettingpool/internal/blockchain"
	"github.com/rovshanmuradov/bettingpool/internal/blockchain/solbc"
	"github.com/rovshanmuradov/bettingpool/internal/blockchain/transaction"
	"github.com/rovshanmuradov/bettingpool/internal/config"
	"github.com/rovshanmuradov/bettingpool/internal/utils/logger"
	"github.com/rovshanmuradov/bettingpool/internal/utils/metrics"
	"github.com/rovshanmuradov/bettingpool/internal/wallet"
)

// Runner owns the wired dependencies of one CLI invocation.
type Runner struct {
	cfg       *config.Config
	logger    *logger.Logger
	client    blockchain.Client
	assembler *bettingpool.Assembler
	keyring   wallet.Keyring
	metrics   *metrics.Collector
	out       io.Writer
}

// NewRunner wires the assembler to client and loads the optional keyring.
func NewRunner(
	cfg *config.Config,
	log *logger.Logger,
	client blockchain.Client,
	collector *metrics.Collector,
	out io.Writer,
) (*Runner, error) {
	var ring wallet.Keyring
	if cfg.WalletsFile != "" {
		var err error
		ring, err = wallet.LoadWallets(cfg.WalletsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load wallets: %w", err)
		}
	}

	asm := bettingpool.NewAssembler(client, client, client, bettingpool.Config{
		Program:        cfg.Program(),
		ParallelProbes: cfg.ParallelProbes,
		DryRun:         cfg.DryRun,
	}, logger.Component(log.Logger, "bettingpool"))

	return &Runner{
		cfg:       cfg,
		logger:    log,
		client:    client,
		assembler: asm,
		keyring:   ring,
		metrics:   collector,
		out:       out,
	}, nil
}

// NewRPCClient builds the RPC adapter from cfg.
func NewRPCClient(cfg *config.Config, log *logger.Logger, collector *metrics.Collector) blockchain.Client {
	commitment := rpc.CommitmentType(strings.ToLower(cfg.Commitment))
	return solbc.NewClient(cfg.RPCURL, solbc.Config{
		Observer:   collector,
		Commitment: commitment,
		Submit: blockchain.SubmitOptions{
			SkipPreflight:       cfg.SkipPreflight,
			PreflightCommitment: commitment,
			SkipConfirmation:    cfg.SkipConfirmation,
			ConfirmTimeout:      cfg.SubmitTimeout,
		},
		Budget: transaction.ComputeBudget{
			Units:         cfg.ComputeUnitLimit,
			MicroLamports: cfg.ComputeUnitPrice,
		},
	}, logger.Component(log.Logger, "rpc"))
}

// Context returns a context cancelled on SIGINT or SIGTERM.
func (r *Runner) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			r.logger.Info("Signal received", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// Run executes one assembler operation and reports its result.
func (r *Runner) Run(parent context.Context, operation string, fn func(context.Context) *bettingpool.Result) error {
	ctx, cancel := r.Context(parent)
	defer cancel()
	defer r.logger.TrackPerformance(operation)()

	start := time.Now()
	res := fn(ctx)
	r.metrics.RecordOperation(operation, res.OK(), res.ErrorKind, time.Since(start))
	return r.Report(res)
}

// Shutdown writes the metrics textfile, if configured, and flushes the logger.
func (r *Runner) Shutdown() {
	if r.cfg.MetricsFile != "" {
		if err := r.metrics.WriteTextfile(r.cfg.MetricsFile); err != nil {
			r.logger.LogError("Failed to write metrics", err, zap.String("path", r.cfg.MetricsFile))
		}
	}
	if err := r.logger.Sync(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
	}
}

// Wallet resolves a wallet by keyring name or base58 secret. An empty ref
// falls back to the configured operator key.
func (r *Runner) Wallet(ref string) (*wallet.Wallet, error) {
	if ref == "" {
		ref = r.cfg.OperatorKey
	}
	if ref == "" {
		return nil, fmt.Errorf("no key given and operator_key is not configured")
	}
	return r.keyring.Resolve(ref)
}

// Print writes v as indented JSON.
func (r *Runner) Print(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Report prints res and turns a failed result into an error for the exit code.
func (r *Runner) Report(res *bettingpool.Result) error {
	if err := r.Print(res); err != nil {
		return err
	}
	if !res.OK() {
		return ErrFailed
	}
	return nil
}

// Reject reports an argument error as a failed validation result.
func (r *Runner) Reject(step string, err error) error {
	return r.Report(bettingpool.NewTrace(r.logger.Logger).Fail(bettingpool.KindValidation, step, err))
}

func parsePublicKey(name, s string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return key, nil
}
