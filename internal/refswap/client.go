package refswap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jaswinder6991/dao-agent-next/internal/upstream"
)

// RouterClient calls the Ref Finance smart-router path-finding service.
type RouterClient struct {
	baseURL    string
	pathDeep   int
	slippage   string
	httpClient *http.Client
}

func NewRouterClient(cfg Config) *RouterClient {
	return &RouterClient{
		baseURL:  strings.TrimSuffix(cfg.RouterURL, "/"),
		pathDeep: cfg.PathDeep,
		slippage: cfg.Slippage,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RouteData is the slice of the path-finder response this service consumes.
type RouteData struct {
	AmountIn    string  `json:"amount_in"`
	AmountOut   string  `json:"amount_out"`
	ContractIn  string  `json:"contract_in"`
	ContractOut string  `json:"contract_out"`
	Routes      []Route `json:"routes"`
}

type Route struct {
	AmountIn     string `json:"amount_in"`
	MinAmountOut string `json:"min_amount_out"`
	Pools        []Pool `json:"pools"`
}

// Pool is one hop in a swap route. The path-finder emits pool ids as either
// strings or numbers; PoolID normalizes them to numeric form.
type Pool struct {
	AmountIn     string `json:"amount_in,omitempty"`
	MinAmountOut string `json:"min_amount_out"`
	PoolID       PoolID `json:"pool_id"`
	TokenIn      string `json:"token_in"`
	TokenOut     string `json:"token_out"`
}

type PoolID int64

func (p *PoolID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("refswap: pool id %s is not numeric: %w", string(data), err)
	}
	*p = PoolID(v)
	return nil
}

type findPathResponse struct {
	ResultData RouteData `json:"result_data"`
}

// FindPath asks the smart router for swap routes between the two assets.
// Search depth and slippage are fixed by configuration.
func (c *RouterClient) FindPath(ctx context.Context, tokenInID, tokenOutID, amountIn string) (RouteData, error) {
	queryParams := url.Values{}
	queryParams.Set("amountIn", amountIn)
	queryParams.Set("tokenIn", tokenInID)
	queryParams.Set("tokenOut", tokenOutID)
	queryParams.Set("pathDeep", strconv.Itoa(c.pathDeep))
	queryParams.Set("slippage", c.slippage)

	endpoint := fmt.Sprintf("%s/findPath?%s", c.baseURL, queryParams.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RouteData{}, fmt.Errorf("refswap: failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RouteData{}, fmt.Errorf("refswap: failed to call path-finder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RouteData{}, fmt.Errorf("refswap: unexpected status code: %d", resp.StatusCode)
	}

	var pathResp findPathResponse
	if err := json.NewDecoder(resp.Body).Decode(&pathResp); err != nil {
		return RouteData{}, upstream.Violation("refswap", "malformed findPath response", err)
	}

	return pathResp.ResultData, nil
}
