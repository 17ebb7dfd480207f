package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	mytoken "github.com/mytoken-labs/mytoken/go"
	"github.com/mytoken-labs/mytoken/go/types"
)

// Client calls the token tools over a connected MCP session.
//
// Example:
//
//	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{
//	    Name: "my-agent", Version: "1.0.0",
//	}, nil)
//	session, err := mcpClient.Connect(ctx, transport, nil)
//	if err != nil { ... }
//
//	tokens := mcp.NewClient(session)
//	info, err := tokens.Info(ctx)
type Client struct {
	session *mcpsdk.ClientSession
}

// NewClient wraps a connected session
func NewClient(session *mcpsdk.ClientSession) *Client {
	return &Client{session: session}
}

// Close closes the underlying session
func (c *Client) Close() error {
	return c.session.Close()
}

func (c *Client) Info(ctx context.Context) (types.TokenInfo, error) {
	var out types.TokenInfo
	err := c.call(ctx, ToolTokenInfo, map[string]interface{}{}, &out)
	return out, err
}

func (c *Client) Nonces(ctx context.Context, owner common.Address) (string, error) {
	var out types.ValueResponse
	err := c.call(ctx, ToolNonces, map[string]interface{}{"owner": owner.Hex()}, &out)
	return out.Value, err
}

func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (string, error) {
	var out types.ValueResponse
	err := c.call(ctx, ToolAllowance, map[string]interface{}{"owner": owner.Hex(), "spender": spender.Hex()}, &out)
	return out.Value, err
}

func (c *Client) SpenderAllowance(ctx context.Context, spender common.Address) (types.SpenderAllowanceResponse, error) {
	var out types.SpenderAllowanceResponse
	err := c.call(ctx, ToolSpenderAllowance, map[string]interface{}{"spender": spender.Hex()}, &out)
	return out, err
}

func (c *Client) BalanceOf(ctx context.Context, account common.Address) (string, error) {
	var out types.ValueResponse
	err := c.call(ctx, ToolBalanceOf, map[string]interface{}{"account": account.Hex()}, &out)
	return out.Value, err
}

func (c *Client) EmergencyAddress(ctx context.Context, owner common.Address) (string, error) {
	var out types.AddressResponse
	err := c.call(ctx, ToolEmergencyAddress, map[string]interface{}{"owner": owner.Hex()}, &out)
	return out.Address, err
}

func (c *Client) PermitDigest(ctx context.Context, req types.PermitDigestRequest) (types.PermitDigestResponse, error) {
	var out types.PermitDigestResponse
	err := c.call(ctx, ToolPermitDigest, req, &out)
	return out, err
}

func (c *Client) Permit(ctx context.Context, req types.PermitRequest) (types.Receipt, error) {
	var out types.Receipt
	err := c.call(ctx, ToolPermit, req, &out)
	return out, err
}

// call invokes a tool and decodes its text content into out. Tool error
// results are returned as *mytoken.TokenError.
func (c *Client) call(ctx context.Context, name string, args interface{}, out interface{}) error {
	result, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	text := ""
	for _, item := range result.Content {
		if tc, ok := item.(*mcpsdk.TextContent); ok {
			text = tc.Text
			break
		}
	}

	if result.IsError {
		var wire types.ErrorResponse
		if err := json.Unmarshal([]byte(text), &wire); err == nil && wire.Code != "" {
			return mytoken.NewTokenError(wire.Code, wire.Message, wire.Details)
		}
		return fmt.Errorf("%s failed: %s", name, text)
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", name, err)
	}
	return nil
}
