package refswap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jaswinder6991/dao-agent-next/internal/nearrpc"
	"github.com/jaswinder6991/dao-agent-next/internal/neartx"
	"github.com/jaswinder6991/dao-agent-next/internal/util"
)

// nativeSymbol feeds the aggregator's unwrap convention: the skip-unwrap
// flag rides on an exact symbol match. Fragile, but it is the aggregator's
// contract and changing it here would change swap results.
const nativeSymbol = "NEAR"

type Config struct {
	RouterURL      string `envconfig:"REF_ROUTER_URL" default:"https://smartrouter.ref.finance"`
	RouterContract string `envconfig:"REF_ROUTER_CONTRACT" default:"v2.ref-finance.near"`
	WrapNearID     string `envconfig:"WRAP_NEAR_ID" default:"wrap.near"`
	PathDeep       int    `envconfig:"REF_PATH_DEEP" default:"3"`
	Slippage       string `envconfig:"REF_SLIPPAGE" default:"0.1"`

	SwapGas            uint64 `envconfig:"REF_SWAP_GAS" default:"180000000000000"`
	StorageDepositGas  uint64 `envconfig:"REF_STORAGE_DEPOSIT_GAS" default:"30000000000000"`
	RegisterAccountGas uint64 `envconfig:"REF_REGISTER_ACCOUNT_GAS" default:"10000000000000"`

	// StorageDepositAmount is 0.1 NEAR in yocto, the standard storage bond.
	StorageDepositAmount string `envconfig:"REF_STORAGE_DEPOSIT_AMOUNT" default:"100000000000000000000000"`

	// NoRegistrationTokens are assets with nonstandard registration; the
	// default is the bridged native-USDC contract.
	NoRegistrationTokens []string `envconfig:"REF_NO_REGISTRATION_TOKENS" default:"17208628f84f5d6ad33f0da3bbbeb27ffcb398eac501a31bd6ad2011e36133a1"`
}

// Step is one batched contract call of a swap plan: the caller submits the
// steps in order as separate transactions.
type Step struct {
	ReceiverID    string                `json:"receiver_id"`
	FunctionCalls []neartx.FunctionCall `json:"function_calls"`
}

type Plan struct {
	Steps []Step `json:"steps"`
}

// TokenMetadata is the slice of ft_metadata consumed here.
type TokenMetadata struct {
	ID       string `json:"id"`
	Decimals int    `json:"decimals"`
	Symbol   string `json:"symbol"`
}

// StorageBalance is the fungible-token storage registration record; a null
// response means the account is unregistered.
type StorageBalance struct {
	Total     string `json:"total"`
	Available string `json:"available"`
}

// Planner builds multi-step swap plans against the Ref Finance aggregator.
type Planner struct {
	router *RouterClient
	rpc    nearrpc.Caller
	cfg    Config
}

func NewPlanner(router *RouterClient, rpc nearrpc.Caller, cfg Config) *Planner {
	return &Planner{router: router, rpc: rpc, cfg: cfg}
}

// TokenMetadata resolves decimals and symbol from the token registry.
func (p *Planner) TokenMetadata(ctx context.Context, tokenID string) (TokenMetadata, error) {
	var meta TokenMetadata
	if err := p.rpc.ViewJSON(ctx, tokenID, "ft_metadata", struct{}{}, &meta); err != nil {
		return TokenMetadata{}, fmt.Errorf("refswap: failed to resolve metadata of %s: %w", tokenID, err)
	}
	meta.ID = tokenID
	return meta, nil
}

// StorageBalance looks up the account's storage registration on the token.
// A nil result with nil error means unregistered.
func (p *Planner) StorageBalance(ctx context.Context, tokenID, accountID string) (*StorageBalance, error) {
	var balance *StorageBalance
	err := p.rpc.ViewJSON(ctx, tokenID, "storage_balance_of", map[string]string{"account_id": accountID}, &balance)
	if err != nil {
		return nil, fmt.Errorf("refswap: failed to check storage of %s on %s: %w", accountID, tokenID, err)
	}
	return balance, nil
}

func (p *Planner) isNoRegistrationToken(tokenID string) bool {
	for _, id := range p.cfg.NoRegistrationTokens {
		if id == tokenID {
			return true
		}
	}
	return false
}

// registrationCalls returns the preparatory calls needed before the account
// can hold the destination asset, or nil when already registered.
func (p *Planner) registrationCalls(ctx context.Context, token TokenMetadata, accountID string) ([]neartx.FunctionCall, error) {
	balance, err := p.StorageBalance(ctx, token.ID, accountID)
	if err != nil {
		return nil, fmt.Errorf("refswap: %s doesn't exist: %w", token.ID, err)
	}
	if balance != nil {
		return nil, nil
	}

	storageDeposit, err := neartx.NewFunctionCall(
		"storage_deposit",
		map[string]any{"registration_only": true, "account_id": accountID},
		p.cfg.StorageDepositGas,
		p.cfg.StorageDepositAmount,
	)
	if err != nil {
		return nil, err
	}

	if !p.isNoRegistrationToken(token.ID) {
		return []neartx.FunctionCall{*storageDeposit.FunctionCall}, nil
	}

	// Nonstandard-registration asset: probe storage_balance_of again; a
	// working probe means the contract upgraded to the standard flow.
	probeErr := p.rpc.ViewJSON(ctx, token.ID, "storage_balance_of", map[string]string{"account_id": accountID}, nil)
	if probeErr == nil {
		return []neartx.FunctionCall{*storageDeposit.FunctionCall}, nil
	}

	var registered bool
	err = p.rpc.ViewJSON(ctx, token.ID, "check_registration", map[string]string{"account_id": accountID}, &registered)
	if err != nil {
		return nil, fmt.Errorf("refswap: registration probe of %s failed: %w", token.ID, err)
	}

	registerAccount, err := neartx.NewFunctionCall(
		"register_account",
		map[string]string{"account_id": accountID},
		p.cfg.RegisterAccountGas,
		"0",
	)
	if err != nil {
		return nil, err
	}
	return []neartx.FunctionCall{*registerAccount.FunctionCall}, nil
}

// normalizePools flattens the route DAG, dropping zero input amounts so the
// router contract infers them from the chain.
func normalizePools(routes []Route) []Pool {
	var pools []Pool
	for _, route := range routes {
		for _, pool := range route.Pools {
			if pool.AmountIn == "0" || pool.AmountIn == "" {
				pool.AmountIn = ""
			}
			pools = append(pools, pool)
		}
	}
	return pools
}

type swapMsg struct {
	Force          int    `json:"force"`
	Actions        []Pool `json:"actions"`
	SkipUnwrapNear *bool  `json:"skip_unwrap_near,omitempty"`
}

// Find plans a swap of sendAmount of tokenIn into tokenOut on behalf of
// accountID: an optional registration step followed by the
// transfer-with-call swap step.
func (p *Planner) Find(ctx context.Context, accountID, tokenInID, tokenOutID, sendAmount string) (*Plan, error) {
	routeData, err := p.router.FindPath(ctx, tokenInID, tokenOutID, sendAmount)
	if err != nil {
		return nil, err
	}

	tokenIn, err := p.TokenMetadata(ctx, tokenInID)
	if err != nil {
		return nil, err
	}
	tokenOut, err := p.TokenMetadata(ctx, tokenOutID)
	if err != nil {
		return nil, err
	}

	var steps []Step

	regCalls, err := p.registrationCalls(ctx, tokenOut, accountID)
	if err != nil {
		return nil, err
	}
	if len(regCalls) > 0 {
		steps = append(steps, Step{ReceiverID: tokenOut.ID, FunctionCalls: regCalls})
	}

	amount, err := util.ToBaseUnits(sendAmount, tokenIn.Decimals)
	if err != nil {
		return nil, fmt.Errorf("refswap: invalid send amount: %w", err)
	}

	msg := swapMsg{
		Force:   0,
		Actions: normalizePools(routeData.Routes),
	}
	if tokenOut.Symbol == nativeSymbol {
		skip := false
		msg.SkipUnwrapNear = &skip
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("refswap: failed to marshal swap message: %w", err)
	}

	transferCall, err := neartx.NewFunctionCall(
		"ft_transfer_call",
		map[string]string{
			"receiver_id": p.cfg.RouterContract,
			"amount":      amount.String(),
			"msg":         string(msgJSON),
		},
		p.cfg.SwapGas,
		util.OneYocto,
	)
	if err != nil {
		return nil, err
	}

	steps = append(steps, Step{
		ReceiverID:    tokenIn.ID,
		FunctionCalls: []neartx.FunctionCall{*transferCall.FunctionCall},
	})

	return &Plan{Steps: steps}, nil
}
