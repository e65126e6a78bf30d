// Package explorer provides a Go client for Etherscan-compatible block
// explorer APIs (Etherscan, Blockscout, and the many chain-specific scanners
// that follow the same convention).
package explorer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// DefaultRequestsPerSecond matches the Etherscan free tier limit.
const DefaultRequestsPerSecond = 5

// Client is a block explorer API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRateLimit sets the request rate limit in requests per second.
// A non-positive value disables rate limiting.
func WithRateLimit(rps float64) Option {
	return func(client *Client) {
		if rps <= 0 {
			client.limiter = nil
			return
		}
		client.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// New creates a new explorer client. baseURL is the API endpoint, e.g.
// "https://api.etherscan.io/api" or "https://eth.blockscout.com/api".
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the API endpoint the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the common Etherscan response wrapper
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// VerifyRequest is the payload for a verifysourcecode submission.
// SourceCode must already be serialized standard-json-input text.
type VerifyRequest struct {
	Address              common.Address
	ContractName         string
	CompilerVersion      string
	OptimizationUsed     bool
	Runs                 int
	ConstructorArguments []byte
	EVMVersion           string
	SourceCode           string
}

// formValues encodes the request as the form body expected by the
// verifysourcecode action
func (r *VerifyRequest) formValues(apiKey string) url.Values {
	optimization := "0"
	if r.OptimizationUsed {
		optimization = "1"
	}

	form := url.Values{}
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("apikey", apiKey)
	form.Set("contractaddress", strings.ToLower(r.Address.Hex()))
	form.Set("codeformat", "solidity-standard-json-input")
	form.Set("sourceCode", r.SourceCode)
	form.Set("contractname", r.ContractName)
	form.Set("compilerversion", r.CompilerVersion)
	form.Set("optimizationUsed", optimization)
	form.Set("runs", strconv.Itoa(r.Runs))
	// The Etherscan API spells this field with a typo; it is part of the
	// protocol and must be sent as-is.
	form.Set("constructorArguements", hex.EncodeToString(r.ConstructorArguments))
	if r.EVMVersion != "" {
		form.Set("evmversion", r.EVMVersion)
	}
	return form
}

// SubmitResponse is the raw response to a verification submission.
// The client does not interpret it; Message "OK" with a request GUID in
// Result signals acceptance, anything else is explorer-specific.
type SubmitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// VerifyStatus is the raw response to a checkverifystatus query
type VerifyStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// GetSourceCode fetches the verified source metadata for a contract address.
// When the explorer returns several records the first one is used.
func (c *Client) GetSourceCode(ctx context.Context, address string) (*SourceMetadata, error) {
	query := url.Values{}
	query.Set("module", "contract")
	query.Set("action", "getsourcecode")
	query.Set("address", address)
	query.Set("apikey", c.apiKey)

	var env envelope
	if err := c.get(ctx, query, &env); err != nil {
		return nil, err
	}

	if env.Status != "1" {
		var reason string
		if err := json.Unmarshal(env.Result, &reason); err != nil {
			reason = string(env.Result)
		}
		return nil, fmt.Errorf("getsourcecode failed: %s: %s", env.Message, reason)
	}

	var records []sourceCodeRecord
	if err := json.Unmarshal(env.Result, &records); err != nil {
		return nil, fmt.Errorf("decoding source code result: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no source code records for %s", address)
	}

	return records[0].toMetadata()
}

// VerifySourceCode submits a verification request to the explorer and
// returns its raw response
func (c *Client) VerifySourceCode(ctx context.Context, req *VerifyRequest) (*SubmitResponse, error) {
	form := req.formValues(c.apiKey)

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	var out SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding submit response: %w", err)
	}
	return &out, nil
}

// CheckVerifyStatus queries the status of a pending verification request
func (c *Client) CheckVerifyStatus(ctx context.Context, guid string) (*VerifyStatus, error) {
	query := url.Values{}
	query.Set("module", "contract")
	query.Set("action", "checkverifystatus")
	query.Set("guid", guid)
	query.Set("apikey", c.apiKey)

	var out VerifyStatus
	if err := c.get(ctx, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, query url.Values, result any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
