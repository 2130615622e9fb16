package dao

import (
	"encoding/json"

	"github.com/jaswinder6991/dao-agent-next/internal/neartx"
)

// ProposalKind is the closed set of governance proposal kinds this service
// builds. Exactly one field is set; the single-key object form is what the
// DAO contract expects.
type ProposalKind struct {
	Transfer             *TransferKind     `json:"Transfer,omitempty"`
	AddMemberToRole      *MemberRoleKind   `json:"AddMemberToRole,omitempty"`
	RemoveMemberFromRole *MemberRoleKind   `json:"RemoveMemberFromRole,omitempty"`
	FunctionCall         *FunctionCallKind `json:"FunctionCall,omitempty"`
}

// TransferKind moves a token (or the native asset when TokenID is empty)
// out of the DAO treasury. Amount is in indivisible units.
type TransferKind struct {
	TokenID    string `json:"token_id"`
	ReceiverID string `json:"receiver_id"`
	Amount     string `json:"amount"`
}

type MemberRoleKind struct {
	MemberID string `json:"member_id"`
	Role     string `json:"role"`
}

// FunctionCallKind wraps arbitrary contract calls the DAO executes if the
// proposal passes; args are base64-encoded JSON per the contract ABI.
type FunctionCallKind struct {
	ReceiverID string       `json:"receiver_id"`
	Actions    []ActionCall `json:"actions"`
}

type ActionCall struct {
	MethodName string `json:"method_name"`
	Args       string `json:"args"`
	Deposit    string `json:"deposit"`
	Gas        string `json:"gas"`
}

type Proposal struct {
	Description string       `json:"description"`
	Kind        ProposalKind `json:"kind"`
}

type proposalArgs struct {
	Proposal Proposal `json:"proposal"`
}

// PendingCall describes one not-yet-assembled contract call: the descriptor
// returned by the transfer endpoints for the caller's wallet to turn into a
// transaction.
type PendingCall struct {
	ContractID string          `json:"contract_id"`
	MethodName string          `json:"method_name"`
	Args       json.RawMessage `json:"args"`
	Gas        uint64          `json:"gas,string"`
	Deposit    string          `json:"deposit"`
}

// PendingFromAction pairs a function-call action with its target contract.
func PendingFromAction(contractID string, action neartx.Action) PendingCall {
	fc := action.FunctionCall
	return PendingCall{
		ContractID: contractID,
		MethodName: fc.MethodName,
		Args:       fc.Args,
		Gas:        fc.Gas,
		Deposit:    fc.Deposit,
	}
}
