package bettingpool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/samber/lo"
)

// AccountView is one account reference of an instruction.
type AccountView struct {
	Address  string `json:"address"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

// InstructionView is the JSON form of a built instruction. Data is base58.
// Decoded is set for betting pool instructions only.
type InstructionView struct {
	Program  string              `json:"program"`
	Accounts []AccountView       `json:"accounts"`
	Data     string              `json:"data"`
	Decoded  *DecodedInstruction `json:"decoded,omitempty"`
}

// PlanView describes a plan without signing or sending it.
type PlanView struct {
	Signers      []string          `json:"signers"`
	Instructions []InstructionView `json:"instructions"`
}

// View renders the plan. program selects which instructions get decoded.
func (p *Plan) View(program solana.PublicKey) (*PlanView, error) {
	view := &PlanView{
		Signers: lo.Map(p.Batch.SignerKeys(), func(k solana.PublicKey, _ int) string {
			return k.String()
		}),
		Instructions: make([]InstructionView, 0, p.Batch.Len()),
	}

	for i := 0; i < p.Batch.Len(); i++ {
		ix := p.Batch.Instruction(i)
		data, err := ix.Data()
		if err != nil {
			return nil, fmt.Errorf("instruction %d data: %w", i, err)
		}

		iv := InstructionView{
			Program: ix.ProgramID().String(),
			Data:    base58.Encode(data),
		}
		for _, meta := range ix.Accounts() {
			iv.Accounts = append(iv.Accounts, AccountView{
				Address:  meta.PublicKey.String(),
				Signer:   meta.IsSigner,
				Writable: meta.IsWritable,
			})
		}
		if ix.ProgramID().Equals(program) {
			decoded, err := DecodeInstructionData(data)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			iv.Decoded = decoded
		}
		view.Instructions = append(view.Instructions, iv)
	}
	return view, nil
}
