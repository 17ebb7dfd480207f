package types

import "encoding/json"

// Wire types shared by the HTTP API, the MCP tools and the Go client.
// Amounts are decimal strings and addresses are 0x-prefixed hex.

// TokenInfo describes the token and its EIP-712 domain
type TokenInfo struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ChainID         string `json:"chainId"`
	Address         string `json:"address"`
	Owner           string `json:"owner"`
	DomainSeparator string `json:"domainSeparator"`
	TotalSupply     string `json:"totalSupply"`
}

// PermitRequest submits a signed permit.
// The signature is given either as V, R and S or as a 65-byte Signature.
type PermitRequest struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Value     string `json:"value"`
	Deadline  string `json:"deadline"`
	Nonce     string `json:"nonce,omitempty"`
	V         *int   `json:"v,omitempty"`
	R         string `json:"r,omitempty"`
	S         string `json:"s,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// PermitDigestRequest asks for the digest an owner must sign
type PermitDigestRequest struct {
	Owner    string `json:"owner"`
	Spender  string `json:"spender"`
	Value    string `json:"value"`
	Deadline string `json:"deadline"`
}

// PermitDigestResponse carries the digest bound to the owner's current nonce
type PermitDigestResponse struct {
	Digest          string `json:"digest"`
	Nonce           string `json:"nonce"`
	DomainSeparator string `json:"domainSeparator"`
}

type ApproveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type TransferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TransferFromRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type EmergencyAddressRequest struct {
	Address string `json:"address"`
}

type MintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type BurnRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

// Event is an emitted ledger event
type Event struct {
	Event   string `json:"event"`
	Owner   string `json:"owner,omitempty"`
	Spender string `json:"spender,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Value   string `json:"value"`
}

// Receipt is returned by every successful mutating call
type Receipt struct {
	ID   string  `json:"id"`
	Logs []Event `json:"logs"`
}

// ValueResponse carries a single uint256 (nonce, allowance, balance)
type ValueResponse struct {
	Value string `json:"value"`
}

// SpenderAllowanceResponse names the owner a spender would sweep from
type SpenderAllowanceResponse struct {
	Owner string `json:"owner"`
	Value string `json:"value"`
}

type AddressResponse struct {
	Address string `json:"address"`
}

// ErrorResponse is the body of every rejected request
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Unmarshal helpers

// ToPermitRequest unmarshals bytes to a permit request
func ToPermitRequest(data []byte) (*PermitRequest, error) {
	var req PermitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

