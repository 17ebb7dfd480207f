package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	mytoken "github.com/mytoken-labs/mytoken/go"
	tokenhttp "github.com/mytoken-labs/mytoken/go/http"
	"github.com/mytoken-labs/mytoken/go/types"
)

// Tool names
const (
	ToolTokenInfo        = "token_info"
	ToolNonces           = "nonces"
	ToolAllowance        = "allowance"
	ToolSpenderAllowance = "spender_allowance"
	ToolBalanceOf        = "balance_of"
	ToolEmergencyAddress = "emergency_address"
	ToolPermitDigest     = "permit_digest"
	ToolPermit           = "permit"
)

// ServerName is reported in the MCP implementation info
const ServerName = "mytoken"

// toolHandler turns raw tool arguments into an API response
type toolHandler func(ctx context.Context, args json.RawMessage) tokenhttp.Response

// NewServer creates an MCP server exposing the token's read operations
// and signature-authenticated permits. Caller-authenticated operations are
// not published since MCP sessions carry no caller identity.
func NewServer(token *mytoken.Token, version string, logger *slog.Logger) *mcpsdk.Server {
	if logger == nil {
		logger = slog.Default()
	}
	api := tokenhttp.NewAPI(token, logger)

	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    ServerName,
		Version: version,
	}, nil)

	add := func(name, description, schema string, handler toolHandler) {
		server.AddTool(&mcpsdk.Tool{
			Name:        name,
			Description: description,
			InputSchema: json.RawMessage(schema),
		}, wrap(name, logger, handler))
	}

	add(ToolTokenInfo, "Token name, version, chain, address, owner, domain separator and total supply.", types.EmptySchema,
		func(ctx context.Context, _ json.RawMessage) tokenhttp.Response {
			return api.TokenInfo(ctx)
		})

	add(ToolNonces, "Current permit nonce of an owner.", types.OwnerSchema,
		func(ctx context.Context, raw json.RawMessage) tokenhttp.Response {
			var args struct{ Owner string }
			if resp, ok := unmarshal(raw, &args); !ok {
				return resp
			}
			return api.Nonces(ctx, args.Owner)
		})

	add(ToolAllowance, "Amount a spender may move on behalf of an owner.", types.AllowanceSchema,
		func(ctx context.Context, raw json.RawMessage) tokenhttp.Response {
			var args struct{ Owner, Spender string }
			if resp, ok := unmarshal(raw, &args); !ok {
				return resp
			}
			return api.Allowance(ctx, args.Owner, args.Spender)
		})

	add(ToolSpenderAllowance, "The owner that last granted a spender an allowance and its remaining value.", spenderSchema,
		func(ctx context.Context, raw json.RawMessage) tokenhttp.Response {
			var args struct{ Spender string }
			if resp, ok := unmarshal(raw, &args); !ok {
				return resp
			}
			return api.SpenderAllowance(ctx, args.Spender)
		})

	add(ToolBalanceOf, "Token balance of an account.", types.AccountSchema,
		func(ctx context.Context, raw json.RawMessage) tokenhttp.Response {
			var args struct{ Account string }
			if resp, ok := unmarshal(raw, &args); !ok {
				return resp
			}
			return api.Balance(ctx, args.Account)
		})

	add(ToolEmergencyAddress, "Emergency address registered by an owner, zero when unset.", types.OwnerSchema,
		func(ctx context.Context, raw json.RawMessage) tokenhttp.Response {
			var args struct{ Owner string }
			if resp, ok := unmarshal(raw, &args); !ok {
				return resp
			}
			return api.EmergencyAddress(ctx, args.Owner)
		})

	add(ToolPermitDigest, "EIP-712 digest the owner must sign for a permit at its current nonce.", types.PermitDigestSchema,
		func(ctx context.Context, raw json.RawMessage) tokenhttp.Response {
			return api.PermitDigest(ctx, raw)
		})

	add(ToolPermit, "Submit a signed EIP-2612 permit setting the spender's allowance.", types.PermitSchema,
		func(ctx context.Context, raw json.RawMessage) tokenhttp.Response {
			return api.Permit(ctx, raw)
		})

	return server
}

// NewSSEHandler serves server over the MCP SSE transport.
func NewSSEHandler(server *mcpsdk.Server) http.Handler {
	return mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server {
		return server
	}, &mcpsdk.SSEOptions{})
}

var spenderSchema = `{"type": "object", "properties": {"spender": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"}}, "required": ["spender"]}`

// wrap adapts a toolHandler to the SDK. API failures become error
// results carrying the JSON error body; they are not protocol errors.
func wrap(name string, logger *slog.Logger, handler toolHandler) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		raw := req.Params.Arguments
		if len(raw) == 0 {
			raw = json.RawMessage(`{}`)
		}

		resp := handler(ctx, raw)
		text, err := json.Marshal(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s result: %w", name, err)
		}

		isError := resp.Status != http.StatusOK
		if isError {
			logger.Debug("mcp tool failed", "tool", name, "status", resp.Status)
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(text)}},
			IsError: isError,
		}, nil
	}
}

func unmarshal(raw json.RawMessage, v interface{}) (tokenhttp.Response, bool) {
	if err := json.Unmarshal(raw, v); err != nil {
		wire := mytoken.ErrorToWire(mytoken.NewTokenError(mytoken.ErrCodeInvalidRequest,
			fmt.Sprintf("failed to unmarshal arguments: %v", err), nil))
		return tokenhttp.Response{Status: http.StatusBadRequest, Body: wire}, false
	}
	return tokenhttp.Response{}, true
}
