package refswap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaswinder6991/dao-agent-next/internal/nearrpc"
)

// viewResponder answers call_function queries by contract and method.
type viewResponder map[string]map[string]func() (any, string)

func mockViewServer(t *testing.T, views viewResponder) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params struct {
				AccountID  string `json:"account_id"`
				MethodName string `json:"method_name"`
				ArgsBase64 string `json:"args_base64"`
			} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "query", req.Method)

		methods, ok := views[req.Params.AccountID]
		require.True(t, ok, "unexpected contract: %s", req.Params.AccountID)
		respond, ok := methods[req.Params.MethodName]
		require.True(t, ok, "unexpected method %s on %s", req.Params.MethodName, req.Params.AccountID)

		value, viewErr := respond()
		result := map[string]any{"logs": []string{}}
		if viewErr != "" {
			result["error"] = viewErr
		} else {
			raw, err := json.Marshal(value)
			require.NoError(t, err)
			bytes := make([]int, len(raw))
			for i, b := range raw {
				bytes[i] = int(b)
			}
			result["result"] = bytes
		}

		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": "dontcare", "result": result,
		})
		require.NoError(t, err)
	}))
}

func mockRouterServer(t *testing.T, routes []map[string]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/findPath", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("pathDeep"))
		assert.Equal(t, "0.1", r.URL.Query().Get("slippage"))

		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]any{
			"result_code":    0,
			"result_message": "success",
			"result_data": map[string]any{
				"amount_in":    "1000000000000000000000000",
				"amount_out":   "3500000",
				"contract_in":  "wrap.near",
				"contract_out": "usdt.tether-token.near",
				"routes":       routes,
			},
		})
		require.NoError(t, err)
	}))
}

func value(v any) func() (any, string) {
	return func() (any, string) { return v, "" }
}

func viewErr(e string) func() (any, string) {
	return func() (any, string) { return nil, e }
}

func testConfig() Config {
	return Config{
		RouterContract:       "v2.ref-finance.near",
		WrapNearID:           "wrap.near",
		PathDeep:             3,
		Slippage:             "0.1",
		SwapGas:              180000000000000,
		StorageDepositGas:    30000000000000,
		RegisterAccountGas:   10000000000000,
		StorageDepositAmount: "100000000000000000000000",
		NoRegistrationTokens: []string{"17208628f84f5d6ad33f0da3bbbeb27ffcb398eac501a31bd6ad2011e36133a1"},
	}
}

func newTestPlanner(t *testing.T, views viewResponder, routes []map[string]any) (*Planner, func()) {
	rpcServer := mockViewServer(t, views)
	routerServer := mockRouterServer(t, routes)

	cfg := testConfig()
	cfg.RouterURL = routerServer.URL

	rpc := nearrpc.NewClient(nearrpc.Config{StatusURL: rpcServer.URL, ViewURL: rpcServer.URL})
	planner := NewPlanner(NewRouterClient(cfg), rpc, cfg)

	return planner, func() {
		rpcServer.Close()
		routerServer.Close()
	}
}

func defaultRoutes() []map[string]any {
	return []map[string]any{
		{
			"amount_in":      "1000000000000000000000000",
			"min_amount_out": "3500000",
			"pools": []map[string]any{
				{
					"amount_in":      "1000000000000000000000000",
					"min_amount_out": "0",
					"pool_id":        "79",
					"token_in":       "wrap.near",
					"token_out":      "intermediate.near",
				},
				{
					"amount_in":      "0",
					"min_amount_out": "3500000",
					"pool_id":        4512,
					"token_in":       "intermediate.near",
					"token_out":      "usdt.tether-token.near",
				},
			},
		},
	}
}

func TestFind_RegisteredDestination(t *testing.T) {
	views := viewResponder{
		"wrap.near": {
			"ft_metadata": value(map[string]any{"decimals": 24, "symbol": "wNEAR"}),
		},
		"usdt.tether-token.near": {
			"ft_metadata":        value(map[string]any{"decimals": 6, "symbol": "USDt"}),
			"storage_balance_of": value(map[string]any{"total": "1250000000000000000000", "available": "0"}),
		},
	}
	planner, cleanup := newTestPlanner(t, views, defaultRoutes())
	defer cleanup()

	plan, err := planner.Find(context.Background(), "dev.sputnik-dao.near", "wrap.near", "usdt.tether-token.near", "1")
	require.NoError(t, err)

	// Already registered: single swap step, no preparatory action.
	require.Len(t, plan.Steps, 1)
	step := plan.Steps[0]
	assert.Equal(t, "wrap.near", step.ReceiverID)
	require.Len(t, step.FunctionCalls, 1)

	fc := step.FunctionCalls[0]
	assert.Equal(t, "ft_transfer_call", fc.MethodName)
	assert.Equal(t, uint64(180000000000000), fc.Gas)
	assert.Equal(t, "1", fc.Deposit)

	var args struct {
		ReceiverID string `json:"receiver_id"`
		Amount     string `json:"amount"`
		Msg        string `json:"msg"`
	}
	require.NoError(t, json.Unmarshal(fc.Args, &args))
	assert.Equal(t, "v2.ref-finance.near", args.ReceiverID)
	assert.Equal(t, "1000000000000000000000000", args.Amount)

	var msg struct {
		Force          int              `json:"force"`
		Actions        []map[string]any `json:"actions"`
		SkipUnwrapNear *bool            `json:"skip_unwrap_near"`
	}
	require.NoError(t, json.Unmarshal([]byte(args.Msg), &msg))
	assert.Equal(t, 0, msg.Force)
	require.Len(t, msg.Actions, 2)
	assert.Nil(t, msg.SkipUnwrapNear, "skip flag only rides on native-symbol outputs")

	// Pool ids normalize to numbers; zero input amounts are dropped.
	assert.Equal(t, float64(79), msg.Actions[0]["pool_id"])
	assert.Equal(t, float64(4512), msg.Actions[1]["pool_id"])
	_, hasAmountIn := msg.Actions[1]["amount_in"]
	assert.False(t, hasAmountIn)
	assert.Equal(t, "1000000000000000000000000", msg.Actions[0]["amount_in"])
}

func TestFind_UnregisteredDestination(t *testing.T) {
	views := viewResponder{
		"wrap.near": {
			"ft_metadata": value(map[string]any{"decimals": 24, "symbol": "wNEAR"}),
		},
		"usdt.tether-token.near": {
			"ft_metadata":        value(map[string]any{"decimals": 6, "symbol": "USDt"}),
			"storage_balance_of": value(nil),
		},
	}
	planner, cleanup := newTestPlanner(t, views, defaultRoutes())
	defer cleanup()

	plan, err := planner.Find(context.Background(), "dev.sputnik-dao.near", "wrap.near", "usdt.tether-token.near", "1")
	require.NoError(t, err)

	// Exactly one preparatory registration step, then the swap.
	require.Len(t, plan.Steps, 2)
	reg := plan.Steps[0]
	assert.Equal(t, "usdt.tether-token.near", reg.ReceiverID)
	require.Len(t, reg.FunctionCalls, 1)
	assert.Equal(t, "storage_deposit", reg.FunctionCalls[0].MethodName)
	assert.Equal(t, "100000000000000000000000", reg.FunctionCalls[0].Deposit)
	assert.Equal(t, uint64(30000000000000), reg.FunctionCalls[0].Gas)

	var args struct {
		RegistrationOnly bool   `json:"registration_only"`
		AccountID        string `json:"account_id"`
	}
	require.NoError(t, json.Unmarshal(reg.FunctionCalls[0].Args, &args))
	assert.True(t, args.RegistrationOnly)
	assert.Equal(t, "dev.sputnik-dao.near", args.AccountID)

	assert.Equal(t, "ft_transfer_call", plan.Steps[1].FunctionCalls[0].MethodName)
}

func TestFind_NoRegistrationTokenProbe(t *testing.T) {
	const usdc = "17208628f84f5d6ad33f0da3bbbeb27ffcb398eac501a31bd6ad2011e36133a1"

	views := viewResponder{
		"wrap.near": {
			"ft_metadata": value(map[string]any{"decimals": 24, "symbol": "wNEAR"}),
		},
		usdc: {
			"ft_metadata":        value(map[string]any{"decimals": 6, "symbol": "USDC"}),
			"storage_balance_of": value(nil),
		},
	}
	planner, cleanup := newTestPlanner(t, views, defaultRoutes())
	defer cleanup()

	plan, err := planner.Find(context.Background(), "dev.sputnik-dao.near", "wrap.near", usdc, "1")
	require.NoError(t, err)

	// Probe succeeds (the contract answers storage_balance_of), so the
	// standard storage deposit applies.
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "storage_deposit", plan.Steps[0].FunctionCalls[0].MethodName)
}

func TestFind_NoRegistrationTokenFallsBackToRegisterAccount(t *testing.T) {
	const usdc = "17208628f84f5d6ad33f0da3bbbeb27ffcb398eac501a31bd6ad2011e36133a1"

	balanceCalls := 0
	views := viewResponder{
		"wrap.near": {
			"ft_metadata": value(map[string]any{"decimals": 24, "symbol": "wNEAR"}),
		},
		usdc: {
			"ft_metadata": value(map[string]any{"decimals": 6, "symbol": "USDC"}),
			"storage_balance_of": func() (any, string) {
				balanceCalls++
				if balanceCalls == 1 {
					return nil, "" // first lookup: unregistered (null)
				}
				return nil, "wasm execution failed: MethodNotFound"
			},
			"check_registration": value(false),
		},
	}
	planner, cleanup := newTestPlanner(t, views, defaultRoutes())
	defer cleanup()

	plan, err := planner.Find(context.Background(), "dev.sputnik-dao.near", "wrap.near", usdc, "1")
	require.NoError(t, err)

	require.Len(t, plan.Steps, 2)
	reg := plan.Steps[0].FunctionCalls[0]
	assert.Equal(t, "register_account", reg.MethodName)
	assert.Equal(t, uint64(10000000000000), reg.Gas)
	assert.Equal(t, "0", reg.Deposit)
}

func TestFind_SkipUnwrapOnNativeSymbol(t *testing.T) {
	views := viewResponder{
		"usdt.tether-token.near": {
			"ft_metadata": value(map[string]any{"decimals": 6, "symbol": "USDt"}),
		},
		"wrap.near": {
			"ft_metadata":        value(map[string]any{"decimals": 24, "symbol": "NEAR"}),
			"storage_balance_of": value(map[string]any{"total": "1", "available": "1"}),
		},
	}
	planner, cleanup := newTestPlanner(t, views, defaultRoutes())
	defer cleanup()

	plan, err := planner.Find(context.Background(), "dev.sputnik-dao.near", "usdt.tether-token.near", "wrap.near", "3.5")
	require.NoError(t, err)

	var args struct {
		Msg string `json:"msg"`
	}
	require.NoError(t, json.Unmarshal(plan.Steps[0].FunctionCalls[0].Args, &args))

	var msg map[string]any
	require.NoError(t, json.Unmarshal([]byte(args.Msg), &msg))
	skip, ok := msg["skip_unwrap_near"]
	require.True(t, ok)
	assert.Equal(t, false, skip)
}

func TestFind_MetadataFailurePropagates(t *testing.T) {
	views := viewResponder{
		"wrap.near": {
			"ft_metadata": value(map[string]any{"decimals": 24, "symbol": "wNEAR"}),
		},
		"missing.near": {
			"ft_metadata": viewErr("wasm execution failed: CodeDoesNotExist"),
		},
	}
	planner, cleanup := newTestPlanner(t, views, defaultRoutes())
	defer cleanup()

	_, err := planner.Find(context.Background(), "dev.sputnik-dao.near", "wrap.near", "missing.near", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.near")
}
