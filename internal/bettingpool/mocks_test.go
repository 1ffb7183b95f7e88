// internal/bettingpool/mocks_test.go
package bettingpool

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/bettingpool/internal/blockchain"
	"github.com/stretchr/testify/mock"
)

// MockFetcher реализует blockchain.AccountFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) GetAccount(ctx context.Context, pubkey solana.PublicKey) (*blockchain.Account, error) {
	args := m.Called(ctx, pubkey)
	acc, _ := args.Get(0).(*blockchain.Account)
	return acc, args.Error(1)
}

type MockRent struct {
	mock.Mock
}

func (m *MockRent) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	args := m.Called(ctx, size)
	return args.Get(0).(uint64), args.Error(1)
}

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, instructions []solana.Instruction, signers []solana.PrivateKey) (solana.Signature, error) {
	args := m.Called(ctx, instructions, signers)
	return args.Get(0).(solana.Signature), args.Error(1)
}

// tokenAccountData returns a 165-byte token account in the given state.
func tokenAccountData(mint, owner solana.PublicKey, state byte) []byte {
	data := make([]byte, TokenAccountSize)
	copy(data[0:32], mint[:])
	copy(data[32:64], owner[:])
	data[108] = state
	return data
}

func initializedAccount(owner, mint solana.PublicKey) *blockchain.Account {
	return &blockchain.Account{Owner: TokenProgramID, Data: tokenAccountData(mint, owner, 1)}
}

func mustATA(owner, mint solana.PublicKey) solana.PublicKey {
	addr, err := AssociatedAccountAddress(owner, mint)
	if err != nil {
		panic(err)
	}
	return addr
}

func newKey() solana.PrivateKey {
	return solana.NewWallet().PrivateKey
}
