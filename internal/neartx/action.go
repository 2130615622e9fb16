package neartx

import (
	"encoding/json"
	"fmt"
)

// Action is a tagged variant of the operations a transaction can carry.
// This service only ever emits contract function calls; the enum shape
// matches the NEAR transaction JSON encoding.
type Action struct {
	FunctionCall *FunctionCall `json:"FunctionCall,omitempty"`
}

// FunctionCall invokes a contract method. Gas and deposit are indivisible
// integer units and serialize as exact strings; deposits routinely exceed
// uint64 range so the deposit stays a string end to end.
type FunctionCall struct {
	MethodName string          `json:"method_name"`
	Args       json.RawMessage `json:"args"`
	Gas        uint64          `json:"gas,string"`
	Deposit    string          `json:"deposit"`
}

// NewFunctionCall builds a function-call action with JSON-serializable args.
func NewFunctionCall(methodName string, args any, gas uint64, deposit string) (Action, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return Action{}, fmt.Errorf("neartx: failed to marshal %s args: %w", methodName, err)
	}

	return Action{
		FunctionCall: &FunctionCall{
			MethodName: methodName,
			Args:       argsJSON,
			Gas:        gas,
			Deposit:    deposit,
		},
	}, nil
}
