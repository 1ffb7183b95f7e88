package solbc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bettingpool/internal/blockchain"
)

type stubError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type stubHandler func(call int) (interface{}, *stubError)

// rpcStub is a minimal JSON-RPC endpoint keyed by method name.
type rpcStub struct {
	mu       sync.Mutex
	handlers map[string]stubHandler
	calls    map[string]int
}

func newRPCStub(t *testing.T, handlers map[string]stubHandler) (*rpcStub, string) {
	t.Helper()
	s := &rpcStub{handlers: handlers, calls: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(srv.Close)
	return s, srv.URL
}

func (s *rpcStub) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	call := s.calls[req.Method]
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = stubError{Code: -32601, Message: "method not found: " + req.Method}
	} else if result, rpcErr := h(call); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *rpcStub) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func withContext(value interface{}) interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   value,
	}
}

func always(result interface{}) stubHandler {
	return func(int) (interface{}, *stubError) { return result, nil }
}

func testConfig() Config {
	return Config{
		RetryInterval: time.Millisecond,
		RetryWindow:   time.Second,
		PollInterval:  5 * time.Millisecond,
		Submit:        blockchain.SubmitOptions{ConfirmTimeout: time.Second},
	}
}

func TestGetAccount(t *testing.T) {
	owner := solana.TokenProgramID
	data := []byte{1, 2, 3, 4}
	present := solana.NewWallet().PublicKey()

	_, url := newRPCStub(t, map[string]stubHandler{
		"getAccountInfo": func(call int) (interface{}, *stubError) {
			if call == 1 {
				return withContext(nil), nil
			}
			return withContext(map[string]interface{}{
				"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
				"executable": false,
				"lamports":   2039280,
				"owner":      owner.String(),
				"rentEpoch":  0,
			}), nil
		},
	})
	c := NewClient(url, testConfig(), zap.NewNop())

	acc, err := c.GetAccount(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Nil(t, acc)

	acc, err = c.GetAccount(context.Background(), present)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, owner, acc.Owner)
	assert.Equal(t, uint64(2039280), acc.Lamports)
	assert.Equal(t, data, acc.Data)
}

func TestGetAccountError(t *testing.T) {
	_, url := newRPCStub(t, map[string]stubHandler{
		"getAccountInfo": func(int) (interface{}, *stubError) {
			return nil, &stubError{Code: -32005, Message: "node is behind"}
		},
	})
	c := NewClient(url, testConfig(), nil)

	acc, err := c.GetAccount(context.Background(), solana.NewWallet().PublicKey())
	assert.Nil(t, acc)
	require.Error(t, err)
}

func TestRentAndBalance(t *testing.T) {
	_, url := newRPCStub(t, map[string]stubHandler{
		"getMinimumBalanceForRentExemption": always(2039280),
		"getBalance":                        always(withContext(42)),
	})
	c := NewClient(url, testConfig(), zap.NewNop())

	rent, err := c.GetMinimumBalanceForRentExemption(context.Background(), 165)
	require.NoError(t, err)
	assert.Equal(t, uint64(2039280), rent)

	bal, err := c.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), bal)
}

func submitFixture(t *testing.T) ([]solana.Instruction, []solana.PrivateKey) {
	t.Helper()
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	ix := system.NewTransferInstruction(1, payer.PublicKey(), solana.NewWallet().PublicKey()).Build()
	return []solana.Instruction{ix}, []solana.PrivateKey{payer}
}

func blockhashResult() interface{} {
	return withContext(map[string]interface{}{
		"blockhash":            solana.Hash{7, 7, 7}.String(),
		"lastValidBlockHeight": 100,
	})
}

func statusResult(status string, txErr interface{}) interface{} {
	return withContext([]interface{}{map[string]interface{}{
		"slot":               1,
		"confirmations":      nil,
		"err":                txErr,
		"confirmationStatus": status,
	}})
}

func TestSubmitRetriesStaleBlockhash(t *testing.T) {
	sig := solana.Signature{9, 9, 9}
	stub, url := newRPCStub(t, map[string]stubHandler{
		"getLatestBlockhash": always(blockhashResult()),
		"sendTransaction": func(call int) (interface{}, *stubError) {
			if call == 1 {
				return nil, &stubError{Code: -32002, Message: "Transaction simulation failed: Blockhash not found"}
			}
			return sig.String(), nil
		},
		"getSignatureStatuses": always(statusResult("confirmed", nil)),
	})
	c := NewClient(url, testConfig(), zap.NewNop())

	ixs, signers := submitFixture(t)
	got, err := c.Submit(context.Background(), ixs, signers)
	require.NoError(t, err)
	assert.Equal(t, sig, got)
	assert.Equal(t, 2, stub.count("sendTransaction"))
	assert.Equal(t, 2, stub.count("getLatestBlockhash"))
	assert.GreaterOrEqual(t, stub.count("getSignatureStatuses"), 1)
}

func TestSubmitProgramErrorIsFinal(t *testing.T) {
	stub, url := newRPCStub(t, map[string]stubHandler{
		"getLatestBlockhash": always(blockhashResult()),
		"sendTransaction": func(int) (interface{}, *stubError) {
			return nil, &stubError{
				Code:    -32002,
				Message: "Transaction simulation failed: Error processing Instruction 1: custom program error: 0x16",
				Data: map[string]interface{}{
					"err":  map[string]interface{}{"InstructionError": []interface{}{1, map[string]interface{}{"Custom": 22}}},
					"logs": []string{"Program log: trade", "Program failed: custom program error: 0x16"},
				},
			}
		},
	})
	c := NewClient(url, testConfig(), zap.NewNop())

	ixs, signers := submitFixture(t)
	_, err := c.Submit(context.Background(), ixs, signers)
	require.Error(t, err)

	var perr *ProgramError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, uint32(22), perr.Code)
	assert.Equal(t, "InsufficientMargin", perr.Name)
	assert.Equal(t, 1, perr.Instruction)
	assert.Len(t, perr.Logs, 2)
	assert.Equal(t, 1, stub.count("sendTransaction"))
}

func TestSubmitSkipConfirmation(t *testing.T) {
	sig := solana.Signature{5}
	stub, url := newRPCStub(t, map[string]stubHandler{
		"getLatestBlockhash": always(blockhashResult()),
		"sendTransaction":    always(sig.String()),
	})
	cfg := testConfig()
	cfg.Submit.SkipConfirmation = true
	c := NewClient(url, cfg, zap.NewNop())

	ixs, signers := submitFixture(t)
	got, err := c.Submit(context.Background(), ixs, signers)
	require.NoError(t, err)
	assert.Equal(t, sig, got)
	assert.Equal(t, 0, stub.count("getSignatureStatuses"))
}

func TestSubmitFailedConfirmation(t *testing.T) {
	_, url := newRPCStub(t, map[string]stubHandler{
		"getLatestBlockhash": always(blockhashResult()),
		"sendTransaction":    always(solana.Signature{4}.String()),
		"getSignatureStatuses": always(statusResult("processed",
			map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 1}}})),
	})
	c := NewClient(url, testConfig(), zap.NewNop())

	ixs, signers := submitFixture(t)
	_, err := c.Submit(context.Background(), ixs, signers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestWaitForConfirmationTimeout(t *testing.T) {
	_, url := newRPCStub(t, map[string]stubHandler{
		"getSignatureStatuses": always(withContext([]interface{}{nil})),
	})
	cfg := testConfig()
	cfg.Submit.ConfirmTimeout = 30 * time.Millisecond
	c := NewClient(url, cfg, zap.NewNop())

	err := c.WaitForTransactionConfirmation(context.Background(), solana.Signature{1})
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
}

func TestSubmitNoSigners(t *testing.T) {
	stub, url := newRPCStub(t, map[string]stubHandler{
		"getLatestBlockhash": always(blockhashResult()),
	})
	c := NewClient(url, testConfig(), zap.NewNop())

	ixs, _ := submitFixture(t)
	_, err := c.Submit(context.Background(), ixs, nil)
	require.Error(t, err)
	assert.Equal(t, 0, stub.count("sendTransaction"))
}

type recordingObserver struct {
	mu      sync.Mutex
	methods []string
	failed  []string
}

func (o *recordingObserver) RecordRPC(method string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.methods = append(o.methods, method)
	if err != nil {
		o.failed = append(o.failed, method)
	}
}

func TestObserverSeesEveryCall(t *testing.T) {
	_, url := newRPCStub(t, map[string]stubHandler{
		"getAccountInfo":                    always(withContext(nil)),
		"getMinimumBalanceForRentExemption": always(890880),
	})
	obs := &recordingObserver{}
	cfg := testConfig()
	cfg.Observer = obs
	c := NewClient(url, cfg, zap.NewNop())

	_, err := c.GetAccount(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	_, err = c.GetMinimumBalanceForRentExemption(context.Background(), 0)
	require.NoError(t, err)
	_, err = c.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.Error(t, err)

	assert.Equal(t, []string{"getAccountInfo", "getMinimumBalanceForRentExemption", "getBalance"}, obs.methods)
	assert.Equal(t, []string{"getBalance"}, obs.failed)
}
