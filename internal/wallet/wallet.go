// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"crypto/ed25519"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var (
	ErrInvalidKeyLength = errors.New("invalid private key length")
	ErrUnknownWallet    = errors.New("unknown wallet")
)

// Wallet is a Solana keypair.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// Keypair is the printable form of a wallet.
type Keypair struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

// NewWallet decodes a base58 secret. Both the 64-byte expanded key and the
// 32-byte seed are accepted.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	raw, err := base58.Decode(strings.TrimSpace(privateKeyBase58))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	var key solana.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		key = solana.PrivateKey(raw)
	case ed25519.SeedSize:
		key = solana.PrivateKey(ed25519.NewKeyFromSeed(raw))
	default:
		return nil, fmt.Errorf("%w: expected %d or %d bytes, got %d",
			ErrInvalidKeyLength, ed25519.PrivateKeySize, ed25519.SeedSize, len(raw))
	}
	return FromPrivateKey(key), nil
}

// FromPrivateKey wraps an existing key.
func FromPrivateKey(key solana.PrivateKey) *Wallet {
	return &Wallet{PrivateKey: key, PublicKey: key.PublicKey()}
}

// NewRandom generates a fresh keypair.
func NewRandom() (*Wallet, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return FromPrivateKey(key), nil
}

// Generate returns a fresh keypair in printable form.
func Generate() (Keypair, error) {
	w, err := NewRandom()
	if err != nil {
		return Keypair{}, err
	}
	return w.Keypair(), nil
}

// Keypair returns the address and base58 secret.
func (w *Wallet) Keypair() Keypair {
	return Keypair{
		Address:    w.PublicKey.String(),
		PrivateKey: base58.Encode(w.PrivateKey),
	}
}

// String returns the wallet's address.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}

// Keyring holds named wallets loaded from a CSV file.
type Keyring map[string]*Wallet

// LoadWallets reads a CSV file with the columns [Name, PrivateKeyBase58].
// The first row is a header. Rows with a bad key are rejected.
func LoadWallets(path string) (Keyring, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file is empty or missing data")
	}

	ring := make(Keyring, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != 2 {
			return nil, fmt.Errorf("row %d: expected 2 columns, got %d", i+2, len(record))
		}
		w, err := NewWallet(record[1])
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+2, record[0], err)
		}
		ring[strings.TrimSpace(record[0])] = w
	}
	return ring, nil
}

// Resolve returns the wallet named ref, or decodes ref as a base58 secret
// when no wallet by that name exists.
func (k Keyring) Resolve(ref string) (*Wallet, error) {
	if w, ok := k[ref]; ok {
		return w, nil
	}
	w, err := NewWallet(ref)
	if err != nil {
		// ref may be a mistyped secret, keep it out of the error
		return nil, fmt.Errorf("%w: not a keyring name or base58 secret: %w", ErrUnknownWallet, err)
	}
	return w, nil
}
