// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

type Config struct {
	RPCURL           string        `mapstructure:"rpc_url"`
	ProgramID        string        `mapstructure:"program_id"`
	OperatorKey      string        `mapstructure:"operator_key"`
	WalletsFile      string        `mapstructure:"wallets_file"`
	Commitment       string        `mapstructure:"commitment"`
	SkipPreflight    bool          `mapstructure:"skip_preflight"`
	SkipConfirmation bool          `mapstructure:"skip_confirmation"`
	ParallelProbes   bool          `mapstructure:"parallel_probes"`
	ComputeUnitLimit uint32        `mapstructure:"compute_unit_limit"`
	ComputeUnitPrice uint64        `mapstructure:"compute_unit_price"`
	SubmitTimeout    time.Duration `mapstructure:"submit_timeout"`
	DebugLogging     bool          `mapstructure:"debug_logging"`
	LogFile          string        `mapstructure:"log_file"`
	MetricsFile      string        `mapstructure:"metrics_file"`
	DryRun           bool          `mapstructure:"dry_run"`
}

const (
	DefaultRPCURL        = "https://api.devnet.solana.com"
	DefaultProgramID     = "DnVoDXeLS9wmWWRk2LZZhWP4y7TxcVrwYhDaY7a6PS53"
	DefaultCommitment    = "confirmed"
	DefaultSubmitTimeout = 30 * time.Second
	DefaultLogFile       = "logs/bettingpool.log"

	envPrefix = "BETTING_POOL"
)

var commitments = map[string]bool{
	"processed": true,
	"confirmed": true,
	"finalized": true,
}

var keys = []string{
	"rpc_url", "program_id", "operator_key", "wallets_file", "commitment",
	"skip_preflight", "skip_confirmation", "parallel_probes",
	"compute_unit_limit", "compute_unit_price", "submit_timeout",
	"debug_logging", "log_file", "metrics_file", "dry_run",
}

// LoadConfig reads path (JSON or YAML) when given and applies BETTING_POOL_*
// environment overrides on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"rpc_url":        DefaultRPCURL,
		"program_id":     DefaultProgramID,
		"commitment":     DefaultCommitment,
		"submit_timeout": DefaultSubmitTimeout,
		"log_file":       DefaultLogFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := loadEnvironmentVariables(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("rpc_url is empty")
	}
	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return errors.New("invalid RPC URL protocol")
	}
	if _, err := solana.PublicKeyFromBase58(cfg.ProgramID); err != nil {
		return fmt.Errorf("invalid program_id: %w", err)
	}
	if !commitments[strings.ToLower(cfg.Commitment)] {
		return fmt.Errorf("invalid commitment %q", cfg.Commitment)
	}
	if cfg.SubmitTimeout <= 0 {
		return errors.New("invalid submit_timeout")
	}
	return nil
}

// Program returns the configured program id.
func (c *Config) Program() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(c.ProgramID)
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env values for keys viper already knows about.
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}
