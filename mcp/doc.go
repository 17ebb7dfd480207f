// Package mcp publishes the permit token as MCP (Model Context Protocol) tools.
//
// # Server Usage
//
//	server := mcp.NewServer(token, "1.0.0", logger)
//	http.Handle("/sse", mcp.NewSSEHandler(server))
//
// The server publishes token_info, nonces, allowance, spender_allowance,
// balance_of, emergency_address, permit_digest and permit. Successful tool
// results carry the same JSON bodies as the HTTP API. Failures are error
// results whose text is the JSON error body.
//
// # Client Usage
//
//	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "my-agent", Version: "1.0.0"}, nil)
//	session, _ := mcpClient.Connect(ctx, &mcpsdk.SSEClientTransport{Endpoint: url}, nil)
//
//	tokens := mcp.NewClient(session)
//	digest, _ := tokens.PermitDigest(ctx, types.PermitDigestRequest{...})
//	receipt, err := tokens.Permit(ctx, signed)
package mcp
