// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bettingpool/internal/blockchain"
	"github.com/rovshanmuradov/bettingpool/internal/blockchain/transaction"
)

const (
	defaultConfirmTimeout = 30 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
	defaultRetryWindow    = 15 * time.Second
)

// ErrConfirmationTimeout is returned when a sent transaction does not reach
// the confirmed level in time.
var ErrConfirmationTimeout = errors.New("confirmation timeout")

// RPCObserver receives the latency and outcome of every RPC call.
type RPCObserver interface {
	RecordRPC(method string, duration time.Duration, err error)
}

// Config tunes the adapter. Zero values fall back to defaults.
type Config struct {
	Observer      RPCObserver
	Commitment    rpc.CommitmentType
	Submit        blockchain.SubmitOptions
	Budget        transaction.ComputeBudget
	RetryWindow   time.Duration
	RetryInterval time.Duration
	PollInterval  time.Duration
}

// Client is a thin adapter over the solana-go RPC client.
type Client struct {
	rpc    *rpc.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a client for rpcURL.
func NewClient(rpcURL string, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.Submit.PreflightCommitment == "" {
		cfg.Submit.PreflightCommitment = cfg.Commitment
	}
	if cfg.Submit.ConfirmTimeout <= 0 {
		cfg.Submit.ConfirmTimeout = defaultConfirmTimeout
	}
	if cfg.RetryWindow <= 0 {
		cfg.RetryWindow = defaultRetryWindow
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Client{
		rpc:    rpc.New(rpcURL),
		cfg:    cfg,
		logger: logger.Named("solbc-client"),
	}
}

// GetAccount fetches a raw account. A missing account yields (nil, nil).
func (c *Client) GetAccount(ctx context.Context, pubkey solana.PublicKey) (*blockchain.Account, error) {
	start := time.Now()
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.cfg.Commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		c.observe("getAccountInfo", start, nil)
		return nil, nil
	}
	c.observe("getAccountInfo", start, err)
	if err != nil {
		c.logger.Debug("GetAccount error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	if res == nil || res.Value == nil {
		return nil, nil
	}

	acc := res.Value
	out := &blockchain.Account{
		Owner:      acc.Owner,
		Lamports:   acc.Lamports,
		Executable: acc.Executable,
	}
	if acc.Data != nil {
		out.Data = acc.Data.GetBinary()
	}
	return out, nil
}

// GetMinimumBalanceForRentExemption returns the rent-exempt minimum for size bytes.
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	start := time.Now()
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, c.cfg.Commitment)
	c.observe("getMinimumBalanceForRentExemption", start, err)
	if err != nil {
		c.logger.Error("GetMinimumBalanceForRentExemption error",
			zap.Uint64("size", size),
			zap.Error(err))
		return 0, err
	}
	return lamports, nil
}

// GetBalance returns the lamport balance of pubkey.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	start := time.Now()
	result, err := c.rpc.GetBalance(ctx, pubkey, c.cfg.Commitment)
	c.observe("getBalance", start, err)
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// GetRecentBlockhash returns the latest blockhash.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	start := time.Now()
	result, err := c.rpc.GetLatestBlockhash(ctx, c.cfg.Commitment)
	c.observe("getLatestBlockhash", start, err)
	if err != nil {
		c.logger.Error("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// Submit signs, sends and (unless disabled) confirms one transaction made of
// instructions. signers[0] pays the fee. A stale blockhash is retried with a
// fresh one; every other failure is final.
func (c *Client) Submit(
	ctx context.Context,
	instructions []solana.Instruction,
	signers []solana.PrivateKey,
) (solana.Signature, error) {
	op := func() (solana.Signature, error) {
		blockhash, err := c.GetRecentBlockhash(ctx)
		if err != nil {
			return solana.Signature{}, backoff.Permanent(fmt.Errorf("failed to get recent blockhash: %w", err))
		}

		tx, err := transaction.Sign(instructions, signers, blockhash, c.cfg.Budget)
		if err != nil {
			return solana.Signature{}, backoff.Permanent(err)
		}

		start := time.Now()
		sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       c.cfg.Submit.SkipPreflight,
			PreflightCommitment: c.cfg.Submit.PreflightCommitment,
		})
		c.observe("sendTransaction", start, err)
		if err != nil {
			if isBlockhashNotFound(err) {
				c.logger.Debug("Blockhash expired, retrying", zap.Error(err))
				return solana.Signature{}, err
			}
			if perr := ParseProgramError(err); perr != nil {
				c.logger.Warn("Program rejected transaction",
					zap.Uint32("code", perr.Code),
					zap.String("name", perr.Name),
					zap.Int("instruction", perr.Instruction))
				return solana.Signature{}, backoff.Permanent(fmt.Errorf("%w: %w", perr, err))
			}
			return solana.Signature{}, backoff.Permanent(err)
		}
		return sig, nil
	}

	eb := backoff.NewExponentialBackOff()
	if c.cfg.RetryInterval > 0 {
		eb.InitialInterval = c.cfg.RetryInterval
	}
	sig, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxElapsedTime(c.cfg.RetryWindow),
	)
	if err != nil {
		c.logger.Error("Submit error", zap.Error(err))
		return solana.Signature{}, err
	}
	c.logger.Info("Transaction sent", zap.String("signature", sig.String()))

	if c.cfg.Submit.SkipConfirmation {
		return sig, nil
	}
	if err := c.WaitForTransactionConfirmation(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// WaitForTransactionConfirmation polls signature statuses until the
// transaction is confirmed, fails, or the confirm timeout expires.
func (c *Client) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	timeout := time.After(c.cfg.Submit.ConfirmTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, signature)
		case <-ticker.C:
			start := time.Now()
			statuses, err := c.rpc.GetSignatureStatuses(ctx, false, signature)
			c.observe("getSignatureStatuses", start, err)
			if err != nil {
				c.logger.Warn("Error getting signature statuses", zap.Error(err))
				continue
			}
			if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue
			}
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", signature, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized ||
				status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed {
				return nil
			}
		}
	}
}

func (c *Client) observe(method string, start time.Time, err error) {
	if c.cfg.Observer != nil {
		c.cfg.Observer.RecordRPC(method, time.Since(start), err)
	}
}

func isBlockhashNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "BlockhashNotFound") ||
		strings.Contains(strings.ToLower(msg), "blockhash not found")
}

var _ blockchain.Client = (*Client)(nil)
