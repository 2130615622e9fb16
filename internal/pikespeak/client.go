package pikespeak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jaswinder6991/dao-agent-next/internal/upstream"
)

type Config struct {
	BaseURL string `envconfig:"PIKESPEAK_BASE_URL" default:"https://api.pikespeak.ai"`
	APIKey  string `envconfig:"PIKESPEAK_API_KEY" required:"true"`
}

// Client queries the Pikespeak analytics API. Failures are logged here and
// propagated to the caller; no retries, no circuit breaking.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// forgeURL appends sorted &-joined key=value pairs to the path. Values are
// deliberately not percent-encoded; the API expects bare comma-joined lists
// and encoding them changes the results.
func forgeURL(base, path string, params map[string]string) string {
	u := base + "/" + path
	if len(params) == 0 {
		return u
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(u)
	sb.WriteString("?")
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(params[k])
		sb.WriteString("&")
	}
	return sb.String()
}

// Query issues a GET against the API and returns the raw JSON body.
func (c *Client) Query(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	url := forgeURL(c.baseURL, path, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("pikespeak: failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Errorf("pikespeak: query %s failed", path)
		return nil, fmt.Errorf("pikespeak: failed to query %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.WithError(err).Errorf("pikespeak: query %s failed", path)
		return nil, fmt.Errorf("pikespeak: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("pikespeak: unexpected status code: %d, body: %s", resp.StatusCode, string(body))
		c.logger.WithField("status", resp.StatusCode).Errorf("pikespeak: query %s failed", path)
		return nil, err
	}

	if !json.Valid(body) {
		return nil, upstream.Violation("pikespeak", fmt.Sprintf("%s returned non-JSON body", path), nil)
	}

	return json.RawMessage(body), nil
}

// DAOEntry is one row of the all-DAOs listing; dollar totals are dropped on
// reshape.
type DAOEntry struct {
	ContractID string `json:"contract_id"`
}

// MemberDAOs returns the DAO ids the account is a member of. Unknown
// accounts yield an empty list, not an error.
func (c *Client) MemberDAOs(ctx context.Context, accountID string) ([]string, error) {
	raw, err := c.Query(ctx, "daos/members", nil)
	if err != nil {
		return nil, err
	}

	var members map[string]struct {
		DAOs []string `json:"daos"`
	}
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, upstream.Violation("pikespeak", "unexpected daos/members shape", err)
	}

	daos := members[accountID].DAOs
	if daos == nil {
		daos = []string{}
	}
	return daos, nil
}

// Proposals lists proposals for the given DAOs. List parameters go over the
// wire as bare comma-joined values; a zero limit omits the limit parameter
// and statuses filter by proposal status when present.
func (c *Client) Proposals(ctx context.Context, daos []string, limit int, statuses []string) (json.RawMessage, error) {
	params := map[string]string{
		"daos": strings.Join(daos, ","),
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	if len(statuses) > 0 {
		params["status"] = strings.Join(statuses, ",")
	}
	return c.Query(ctx, "daos/proposals", params)
}

// ProposalByID fetches a single proposal's detail.
func (c *Client) ProposalByID(ctx context.Context, dao, proposalID string) (json.RawMessage, error) {
	raw, err := c.Query(ctx, "daos/proposal/"+dao, map[string]string{"id": proposalID})
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, upstream.Violation("pikespeak", "unexpected daos/proposal shape", err)
	}
	if len(items) == 0 {
		return json.RawMessage("null"), nil
	}
	return items[0], nil
}

// AllDAOs lists every known DAO id.
func (c *Client) AllDAOs(ctx context.Context) ([]DAOEntry, error) {
	raw, err := c.Query(ctx, "daos/all", nil)
	if err != nil {
		return nil, err
	}

	var daos []DAOEntry
	if err := json.Unmarshal(raw, &daos); err != nil {
		return nil, upstream.Violation("pikespeak", "unexpected daos/all shape", err)
	}
	return daos, nil
}

// ProposalsByProposer lists proposals authored by the account.
func (c *Client) ProposalsByProposer(ctx context.Context, accountID string) (json.RawMessage, error) {
	return c.Query(ctx, "daos/proposals-by-proposer/"+accountID, nil)
}
