package solbc

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// programErrorNames is indexed by the betting program's custom error code.
var programErrorNames = []string{
	"ExpectedAmountMismatch",
	"InvalidInstruction",
	"AlreadyInUse",
	"Uninitialized",
	"ExpectedMint",
	"NotMintAuthority",
	"InvalidMintAuthority",
	"IncorrectOwner",
	"NotRentExempt",
	"InvalidPoolKey",
	"InsufficientFunds",
	"InvalidProgramAddress",
	"InvalidAuthorityAccount",
	"InvalidOwner",
	"DifferentCollateralUsed",
	"InvalidSupply",
	"InvalidFreezeAuthority",
	"IncorrectPoolMint",
	"IncorrectTokenProgramId",
	"InvalidMints",
	"InvalidAccountKeys",
	"WouldBeLiquidated",
	"InsufficientMargin",
	"InvalidTransferTime",
	"ExpectedAccount",
	"AccountNotInitialized",
}

var customErrorLog = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// ProgramError is a custom error raised by an on-chain program during
// preflight simulation.
type ProgramError struct {
	Code        uint32
	Name        string
	Instruction int
	Logs        []string
}

func (e *ProgramError) Error() string {
	if e.Instruction >= 0 {
		return fmt.Sprintf("program error %d (%s) at instruction %d", e.Code, e.Name, e.Instruction)
	}
	return fmt.Sprintf("program error %d (%s)", e.Code, e.Name)
}

// ProgramErrorName maps a custom error code to its name.
func ProgramErrorName(code uint32) string {
	if int(code) < len(programErrorNames) {
		return programErrorNames[code]
	}
	return "Unknown"
}

// ParseProgramError extracts a custom program error from a failed
// sendTransaction call. It returns nil when err carries none.
func ParseProgramError(err error) *ProgramError {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return nil
	}
	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return fromLogLine(rpcErr.Message)
	}

	var logs []string
	if raw, ok := data["logs"].([]interface{}); ok {
		for _, l := range raw {
			if s, ok := l.(string); ok {
				logs = append(logs, s)
			}
		}
	}

	if perr := fromInstructionError(data["err"]); perr != nil {
		perr.Logs = logs
		return perr
	}
	for _, l := range logs {
		if perr := fromLogLine(l); perr != nil {
			perr.Logs = logs
			return perr
		}
	}
	return nil
}

// fromInstructionError reads {"InstructionError": [idx, {"Custom": code}]}.
func fromInstructionError(v interface{}) *ProgramError {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	pair, ok := m["InstructionError"].([]interface{})
	if !ok || len(pair) != 2 {
		return nil
	}
	idx, ok := toInt(pair[0])
	if !ok {
		return nil
	}
	detail, ok := pair[1].(map[string]interface{})
	if !ok {
		return nil
	}
	code, ok := toInt(detail["Custom"])
	if !ok || code < 0 {
		return nil
	}
	return &ProgramError{
		Code:        uint32(code),
		Name:        ProgramErrorName(uint32(code)),
		Instruction: idx,
	}
}

func fromLogLine(s string) *ProgramError {
	m := customErrorLog.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	code, err := strconv.ParseUint(m[1], 16, 32)
	if err != nil {
		return nil
	}
	return &ProgramError{
		Code:        uint32(code),
		Name:        ProgramErrorName(uint32(code)),
		Instruction: -1,
	}
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
