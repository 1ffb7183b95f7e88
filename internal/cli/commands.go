// internal/cli/commands.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/bettingpool/internal/bettingpool"
	"github.com/rovshanmuradov/bettingpool/internal/blockchain"
	"github.com/rovshanmuradov/bettingpool/internal/config"
	"github.com/rovshanmuradov/bettingpool/internal/utils/logger"
	"github.com/rovshanmuradov/bettingpool/internal/utils/metrics"
	"github.com/rovshanmuradov/bettingpool/internal/wallet"
)

// ErrFailed is returned after a failed result has been printed.
var ErrFailed = errors.New("operation failed")

// ClientFactory builds the ledger client once config and logger are known.
type ClientFactory func(cfg *config.Config, log *logger.Logger, collector *metrics.Collector) blockchain.Client

type rootOptions struct {
	configPath string
	envFile    string
	logFile    string
	debug      bool
	dryRun     bool
}

// NewRootCommand builds the command tree. Results are written to out.
func NewRootCommand(out io.Writer, factory ClientFactory) *cobra.Command {
	var (
		opts   rootOptions
		runner *Runner
	)
	get := func() *Runner { return runner }

	root := &cobra.Command{
		Use:           "bettingpool",
		Short:         "Client for the on-chain betting pool program",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			r, err := setup(cmd, opts, out, factory)
			if err != nil {
				return err
			}
			runner = r
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (JSON or YAML)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	flags.StringVar(&opts.logFile, "log-file", "", "override log_file")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the built instructions instead of submitting")

	root.AddCommand(
		newInitPoolCommand(get),
		newTradeCommand(get),
		newMintToCommand(get),
		newTopUpCommand(get),
		newCreateMintCommand(get),
		newSettleCommand(get),
		newPoolCommand(get),
		newWalletCommand(get),
	)
	withShutdown(root, get)
	return root
}

// withShutdown wraps every runnable command so metrics and logs are flushed
// on failure too; cobra skips post-run hooks when RunE errors.
func withShutdown(cmd *cobra.Command, get func() *Runner) {
	for _, sub := range cmd.Commands() {
		withShutdown(sub, get)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(c *cobra.Command, args []string) error {
		defer func() {
			if r := get(); r != nil {
				r.Shutdown()
			}
		}()
		return run(c, args)
	}
}

func setup(cmd *cobra.Command, opts rootOptions, out io.Writer, factory ClientFactory) (*Runner, error) {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", opts.envFile, err)
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.debug {
		cfg.DebugLogging = true
	}
	if opts.dryRun {
		cfg.DryRun = true
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = opts.logFile
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	collector := metrics.NewCollector()
	return NewRunner(cfg, log, factory(cfg, log, collector), collector, out)
}

func newInitPoolCommand(get func() *Runner) *cobra.Command {
	var (
		authority  string
		escrowMint string
		decimals   uint8
	)
	cmd := &cobra.Command{
		Use:   "init-pool",
		Short: "Create a betting pool over an escrow mint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := get()
			auth, err := r.Wallet(authority)
			if err != nil {
				return r.Reject("resolve authority", err)
			}
			mint, err := parsePublicKey("escrow mint", escrowMint)
			if err != nil {
				return r.Reject("parse escrow mint", err)
			}

			return r.Run(cmd.Context(), cmd.Name(), func(ctx context.Context) *bettingpool.Result {
				return r.assembler.InitializePool(ctx, bettingpool.InitializePoolRequest{
					Authority:  auth.PrivateKey,
					EscrowMint: mint,
					Decimals:   decimals,
				})
			})
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "authority wallet name or base58 key (default operator_key)")
	cmd.Flags().StringVar(&escrowMint, "escrow-mint", "", "mint of the collateral token")
	cmd.Flags().Uint8Var(&decimals, "decimals", 0, "decimals of the outcome mints")
	_ = cmd.MarkFlagRequired("escrow-mint")
	return cmd
}

func newTradeCommand(get func() *Runner) *cobra.Command {
	var (
		operator, buyer, seller, pool string
		size, buyerPrice, sellerPrice string
	)
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Settle a matched order between a buyer and a seller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := get()
			op, err := r.Wallet(operator)
			if err != nil {
				return r.Reject("resolve operator", err)
			}
			b, err := r.Wallet(buyer)
			if err != nil {
				return r.Reject("resolve buyer", err)
			}
			s, err := r.Wallet(seller)
			if err != nil {
				return r.Reject("resolve seller", err)
			}
			poolKey, err := parsePublicKey("pool", pool)
			if err != nil {
				return r.Reject("parse pool", err)
			}

			var args bettingpool.TradeArgs
			if args.Size, err = bettingpool.ParseAmount("size", size); err != nil {
				return r.Reject("parse size", err)
			}
			if args.BuyerPrice, err = bettingpool.ParseAmount("buyer price", buyerPrice); err != nil {
				return r.Reject("parse buyer price", err)
			}
			if args.SellerPrice, err = bettingpool.ParseAmount("seller price", sellerPrice); err != nil {
				return r.Reject("parse seller price", err)
			}

			return r.Run(cmd.Context(), cmd.Name(), func(ctx context.Context) *bettingpool.Result {
				return r.assembler.Trade(ctx, bettingpool.TradeRequest{
					Operator: op.PrivateKey,
					Buyer:    b.PrivateKey,
					Seller:   s.PrivateKey,
					Pool:     poolKey,
					Args:     args,
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&operator, "operator", "", "fee payer wallet (default operator_key)")
	f.StringVar(&buyer, "buyer", "", "buyer wallet name or base58 key")
	f.StringVar(&seller, "seller", "", "seller wallet name or base58 key")
	f.StringVar(&pool, "pool", "", "pool address")
	f.StringVar(&size, "size", "", "number of outcome token pairs")
	f.StringVar(&buyerPrice, "buyer-price", "", "buyer price per pair")
	f.StringVar(&sellerPrice, "seller-price", "", "seller price per pair")
	for _, name := range []string{"buyer", "seller", "pool", "size", "buyer-price", "seller-price"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newMintToCommand(get func() *Runner) *cobra.Command {
	var authority, pool, to, amount string
	cmd := &cobra.Command{
		Use:   "mint-to",
		Short: "Mint escrow tokens of a pool to a token account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := get()
			auth, err := r.Wallet(authority)
			if err != nil {
				return r.Reject("resolve authority", err)
			}
			poolKey, err := parsePublicKey("pool", pool)
			if err != nil {
				return r.Reject("parse pool", err)
			}
			dest, err := parsePublicKey("destination", to)
			if err != nil {
				return r.Reject("parse destination", err)
			}
			n, err := bettingpool.ParseAmount("amount", amount)
			if err != nil {
				return r.Reject("parse amount", err)
			}

			return r.Run(cmd.Context(), cmd.Name(), func(ctx context.Context) *bettingpool.Result {
				return r.assembler.MintTo(ctx, bettingpool.MintToRequest{
					Authority:   auth.PrivateKey,
					Pool:        poolKey,
					Destination: dest,
					Amount:      n,
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&authority, "authority", "", "escrow mint authority (default operator_key)")
	f.StringVar(&pool, "pool", "", "pool address")
	f.StringVar(&to, "to", "", "owner of the destination associated token account")
	f.StringVar(&amount, "amount", "", "amount in base units")
	for _, name := range []string{"pool", "to", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newTopUpCommand(get func() *Runner) *cobra.Command {
	var sender, to, amount string
	cmd := &cobra.Command{
		Use:   "top-up",
		Short: "Send lamports to an address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := get()
			from, err := r.Wallet(sender)
			if err != nil {
				return r.Reject("resolve sender", err)
			}
			dest, err := parsePublicKey("recipient", to)
			if err != nil {
				return r.Reject("parse recipient", err)
			}

			req := bettingpool.TopUpRequest{Sender: from.PrivateKey, To: dest}
			if amount != "" {
				n, err := bettingpool.ParseAmount("amount", amount)
				if err != nil {
					return r.Reject("parse amount", err)
				}
				req.Amount = &n
			}

			return r.Run(cmd.Context(), cmd.Name(), func(ctx context.Context) *bettingpool.Result {
				return r.assembler.TopUp(ctx, req)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&sender, "sender", "", "funding wallet (default operator_key)")
	f.StringVar(&to, "to", "", "recipient address")
	f.StringVar(&amount, "amount", "", "lamports to send (default token account rent)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newCreateMintCommand(get func() *Runner) *cobra.Command {
	var (
		authority string
		decimals  uint8
	)
	cmd := &cobra.Command{
		Use:   "create-mint",
		Short: "Create a token mint controlled by the authority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := get()
			auth, err := r.Wallet(authority)
			if err != nil {
				return r.Reject("resolve authority", err)
			}

			return r.Run(cmd.Context(), cmd.Name(), func(ctx context.Context) *bettingpool.Result {
				return r.assembler.CreateMint(ctx, bettingpool.CreateMintRequest{
					Authority: auth.PrivateKey,
					Decimals:  decimals,
				})
			})
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "mint and freeze authority (default operator_key)")
	cmd.Flags().Uint8Var(&decimals, "decimals", 0, "mint decimals")
	return cmd
}

func newSettleCommand(get func() *Runner) *cobra.Command {
	var authority, pool, winning string
	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Declare the winning outcome mint of a pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := get()
			auth, err := r.Wallet(authority)
			if err != nil {
				return r.Reject("resolve authority", err)
			}
			poolKey, err := parsePublicKey("pool", pool)
			if err != nil {
				return r.Reject("parse pool", err)
			}
			mint, err := parsePublicKey("winning mint", winning)
			if err != nil {
				return r.Reject("parse winning mint", err)
			}

			return r.Run(cmd.Context(), cmd.Name(), func(ctx context.Context) *bettingpool.Result {
				return r.assembler.Settle(ctx, bettingpool.SettleRequest{
					Authority:   auth.PrivateKey,
					Pool:        poolKey,
					WinningMint: mint,
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&authority, "authority", "", "pool update authority (default operator_key)")
	f.StringVar(&pool, "pool", "", "pool address")
	f.StringVar(&winning, "winning-mint", "", "long or short mint of the pool")
	_ = cmd.MarkFlagRequired("pool")
	_ = cmd.MarkFlagRequired("winning-mint")
	return cmd
}

func newPoolCommand(get func() *Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "pool <address>",
		Short: "Print the decoded state of a pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := get()
			poolKey, err := parsePublicKey("pool", args[0])
			if err != nil {
				return r.Reject("parse pool", err)
			}

			ctx, cancel := r.Context(cmd.Context())
			defer cancel()
			state, err := r.assembler.LoadPool(ctx, poolKey)
			if err != nil {
				return r.Report(bettingpool.NewTrace(r.logger.Logger).Fail(bettingpool.KindQuery, "load pool", err))
			}
			return r.Print(state.View())
		},
	}
}

type balanceView struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
	SOL      string `json:"sol"`
}

func newWalletCommand(get func() *Runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Wallet utilities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Generate a keypair",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			kp, err := wallet.Generate()
			if err != nil {
				return err
			}
			return get().Print(kp)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "balance [address]",
		Short: "Print the lamport balance of an address (default operator)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := get()
			var addr string
			if len(args) == 1 {
				addr = args[0]
			} else {
				w, err := r.Wallet("")
				if err != nil {
					return err
				}
				addr = w.String()
			}
			key, err := parsePublicKey("address", addr)
			if err != nil {
				return err
			}

			ctx, cancel := r.Context(cmd.Context())
			defer cancel()
			lamports, err := r.client.GetBalance(ctx, key)
			if err != nil {
				return fmt.Errorf("failed to get balance: %w", err)
			}
			return r.Print(balanceView{
				Address:  key.String(),
				Lamports: lamports,
				SOL:      bettingpool.LamportsToSOL(lamports),
			})
		},
	})
	return cmd
}
