package mytoken

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mytoken-labs/mytoken/go/mechanisms/evm"
	"github.com/mytoken-labs/mytoken/go/types"
)

// ParsePermitRequest converts a wire permit into a PermitRequest.
// The signature may be given as v/r/s or as a packed 65-byte hex string;
// v/r/s wins when both are present.
func ParsePermitRequest(w types.PermitRequest) (PermitRequest, error) {
	var (
		req PermitRequest
		err error
	)

	if req.Owner, err = ParseAddress("owner", w.Owner); err != nil {
		return req, err
	}
	if req.Spender, err = ParseAddress("spender", w.Spender); err != nil {
		return req, err
	}
	if req.Value, err = ParseAmount("value", w.Value); err != nil {
		return req, err
	}
	if req.Deadline, err = ParseAmount("deadline", w.Deadline); err != nil {
		return req, err
	}
	if w.Nonce != "" {
		if req.Nonce, err = ParseAmount("nonce", w.Nonce); err != nil {
			return req, err
		}
	}

	switch {
	case w.V != nil:
		if *w.V < 0 || *w.V > 255 {
			return req, NewTokenError(ErrCodeInvalidRequest, "v must fit in a byte", nil)
		}
		r, err := evm.ParseBytes32(w.R)
		if err != nil {
			return req, NewTokenError(ErrCodeInvalidRequest, "r: "+err.Error(), nil)
		}
		s, err := evm.ParseBytes32(w.S)
		if err != nil {
			return req, NewTokenError(ErrCodeInvalidRequest, "s: "+err.Error(), nil)
		}
		req.Signature = evm.Signature{V: uint8(*w.V), R: r, S: s}
	case w.Signature != "":
		sig, err := evm.ParseSignatureHex(w.Signature)
		if err != nil {
			return req, NewTokenError(ErrCodeInvalidRequest, err.Error(), nil)
		}
		req.Signature = sig
	default:
		return req, NewTokenError(ErrCodeInvalidRequest, "missing signature", nil)
	}

	return req, nil
}

// ParseAddress parses a 0x-prefixed hex address or returns an
// invalid_request error naming field.
func ParseAddress(field, s string) (common.Address, error) {
	a, err := evm.ParseAddress(s)
	if err != nil {
		return common.Address{}, NewTokenError(ErrCodeInvalidRequest, field+": "+err.Error(), nil)
	}
	return a, nil
}

// ParseAmount parses a decimal uint256 or returns an invalid_request error
// naming field.
func ParseAmount(field, s string) (*big.Int, error) {
	v, err := evm.ParseUint256(s)
	if err != nil {
		return nil, NewTokenError(ErrCodeInvalidRequest, field+": "+err.Error(), nil)
	}
	return v, nil
}

// ReceiptToWire converts a receipt for JSON transport.
func ReceiptToWire(r *Receipt) types.Receipt {
	out := types.Receipt{ID: r.ID, Logs: make([]types.Event, 0, len(r.Logs))}
	for _, e := range r.Logs {
		ev := types.Event{Event: string(e.Name), Value: e.Value.String()}
		switch e.Name {
		case EventApproval:
			ev.Owner = e.Owner.Hex()
			ev.Spender = e.Spender.Hex()
		case EventTransfer:
			ev.From = e.From.Hex()
			ev.To = e.To.Hex()
		}
		out.Logs = append(out.Logs, ev)
	}
	return out
}

// Info returns token metadata for transport.
func (t *Token) Info(ctx context.Context) (types.TokenInfo, error) {
	supply, err := t.TotalSupply(ctx)
	if err != nil {
		return types.TokenInfo{}, err
	}
	return types.TokenInfo{
		Name:            t.name,
		Version:         t.Version(),
		ChainID:         t.chainID.String(),
		Address:         t.address.Hex(),
		Owner:           t.owner.Hex(),
		DomainSeparator: t.domainSeparator.Hex(),
		TotalSupply:     supply.String(),
	}, nil
}

// ErrorToWire converts an error to the JSON error body.
func ErrorToWire(err error) types.ErrorResponse {
	if te, ok := err.(*TokenError); ok {
		return types.ErrorResponse{Code: te.Code, Message: te.Message, Details: te.Details}
	}
	code := ErrorCode(err)
	if code == ErrCodeInternal {
		return types.ErrorResponse{Code: code, Message: "internal error"}
	}
	return types.ErrorResponse{Code: code, Message: err.Error()}
}
