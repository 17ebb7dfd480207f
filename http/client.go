package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"

	mytoken "github.com/mytoken-labs/mytoken/go"
	"github.com/mytoken-labs/mytoken/go/types"
)

// ============================================================================
// Token API Client
// ============================================================================

// Client talks to a token service over HTTP
type Client struct {
	url         string
	httpClient  *http.Client
	tokenSource TokenSource
}

// TokenSource supplies the bearer token for caller-authenticated routes
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed bearer token
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// ClientConfig configures the HTTP client
type ClientConfig struct {
	// URL is the base URL of the token service
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// TokenSource provides the caller bearer token (optional)
	TokenSource TokenSource

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// DefaultURL is the default local service address
const DefaultURL = "http://localhost:8545"

// getRetries is the number of attempts for read requests on 429 rate limit errors
const getRetries = 3

// getRetryBaseDelay is the base delay for exponential backoff on retries
var getRetryBaseDelay = 1 * time.Second

// NewTokenClient creates a new token API client
func NewTokenClient(config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
	}

	base := config.URL
	if base == "" {
		base = DefaultURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &Client{
		url:         base,
		httpClient:  httpClient,
		tokenSource: config.TokenSource,
	}
}

// ============================================================================
// Reads
// ============================================================================

// Info fetches token metadata
func (c *Client) Info(ctx context.Context) (types.TokenInfo, error) {
	var out types.TokenInfo
	err := c.get(ctx, "/token", &out)
	return out, err
}

// Nonces fetches the owner's current permit nonce
func (c *Client) Nonces(ctx context.Context, owner common.Address) (string, error) {
	var out types.ValueResponse
	err := c.get(ctx, "/nonces/"+owner.Hex(), &out)
	return out.Value, err
}

// Allowance fetches allowance(owner, spender)
func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (string, error) {
	var out types.ValueResponse
	err := c.get(ctx, "/allowance/"+owner.Hex()+"/"+spender.Hex(), &out)
	return out.Value, err
}

// SpenderAllowance fetches the allowance the spender's grantor gave it
func (c *Client) SpenderAllowance(ctx context.Context, spender common.Address) (types.SpenderAllowanceResponse, error) {
	var out types.SpenderAllowanceResponse
	err := c.get(ctx, "/spender-allowance/"+spender.Hex(), &out)
	return out, err
}

// BalanceOf fetches the account balance
func (c *Client) BalanceOf(ctx context.Context, account common.Address) (string, error) {
	var out types.ValueResponse
	err := c.get(ctx, "/balance/"+account.Hex(), &out)
	return out.Value, err
}

// EmergencyAddress fetches the owner's registered emergency address
func (c *Client) EmergencyAddress(ctx context.Context, owner common.Address) (string, error) {
	var out types.AddressResponse
	err := c.get(ctx, "/emergency/"+owner.Hex(), &out)
	return out.Address, err
}

// ============================================================================
// Writes
// ============================================================================

// PermitDigest asks the service for the digest the owner must sign
func (c *Client) PermitDigest(ctx context.Context, req types.PermitDigestRequest) (types.PermitDigestResponse, error) {
	var out types.PermitDigestResponse
	err := c.post(ctx, "/permit/digest", req, false, &out)
	return out, err
}

// Permit submits a signed permit
func (c *Client) Permit(ctx context.Context, req types.PermitRequest) (types.Receipt, error) {
	var out types.Receipt
	err := c.post(ctx, "/permit", req, false, &out)
	return out, err
}

func (c *Client) Approve(ctx context.Context, req types.ApproveRequest) (types.Receipt, error) {
	var out types.Receipt
	err := c.post(ctx, "/approve", req, true, &out)
	return out, err
}

func (c *Client) Transfer(ctx context.Context, req types.TransferRequest) (types.Receipt, error) {
	var out types.Receipt
	err := c.post(ctx, "/transfer", req, true, &out)
	return out, err
}

func (c *Client) TransferFrom(ctx context.Context, req types.TransferFromRequest) (types.Receipt, error) {
	var out types.Receipt
	err := c.post(ctx, "/transfer-from", req, true, &out)
	return out, err
}

func (c *Client) SetEmergencyAddress(ctx context.Context, req types.EmergencyAddressRequest) (types.Receipt, error) {
	var out types.Receipt
	err := c.post(ctx, "/emergency-address", req, true, &out)
	return out, err
}

// TransferEmergency sweeps the grantor's funds to its emergency address
func (c *Client) TransferEmergency(ctx context.Context) (types.Receipt, error) {
	var out types.Receipt
	err := c.post(ctx, "/transfer-emergency", struct{}{}, true, &out)
	return out, err
}

func (c *Client) Mint(ctx context.Context, req types.MintRequest) (types.Receipt, error) {
	var out types.Receipt
	err := c.post(ctx, "/mint", req, true, &out)
	return out, err
}

func (c *Client) Burn(ctx context.Context, req types.BurnRequest) (types.Receipt, error) {
	var out types.Receipt
	err := c.post(ctx, "/burn", req, true, &out)
	return out, err
}

// ============================================================================
// Internal HTTP Methods
// ============================================================================

// get issues a GET, retrying with exponential backoff on 429.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	endpoint, err := url.JoinPath(c.url, path)
	if err != nil {
		return fmt.Errorf("invalid service url: %w", err)
	}

	var lastErr error
	for attempt := range getRetries {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		status, body, err := c.do(req)
		if err != nil {
			return err
		}
		if status == http.StatusOK {
			return decodeResponse(body, out)
		}

		lastErr = responseError(status, body)

		if status == http.StatusTooManyRequests && attempt < getRetries-1 {
			delay := getRetryBaseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return lastErr
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, path string, in interface{}, authenticated bool, out interface{}) error {
	endpoint, err := url.JoinPath(c.url, path)
	if err != nil {
		return fmt.Errorf("invalid service url: %w", err)
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if authenticated {
		if c.tokenSource == nil {
			return fmt.Errorf("%s requires a caller token", path)
		}
		token, err := c.tokenSource.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get caller token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	status, body, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return responseError(status, body)
	}
	return decodeResponse(body, out)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func decodeResponse(body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// responseError turns an error body back into a *mytoken.TokenError so
// callers can match it with errors.Is.
func responseError(status int, body []byte) error {
	var wire types.ErrorResponse
	if err := json.Unmarshal(body, &wire); err == nil && wire.Code != "" {
		return mytoken.NewTokenError(wire.Code, wire.Message, wire.Details)
	}
	return fmt.Errorf("token service request failed (%d): %s", status, string(body))
}
