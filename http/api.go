package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	mytoken "github.com/mytoken-labs/mytoken/go"
	"github.com/mytoken-labs/mytoken/go/types"
)

// Response is a status code and a JSON-serializable body.
type Response struct {
	Status int
	Body   interface{}
}

func ok(body interface{}) Response {
	return Response{Status: http.StatusOK, Body: body}
}

func failure(err error) Response {
	wire := mytoken.ErrorToWire(err)
	return Response{Status: StatusFor(wire.Code), Body: wire}
}

// Unauthenticated is the response for a missing or invalid caller token.
func Unauthenticated(err error) Response {
	return Response{
		Status: http.StatusUnauthorized,
		Body:   types.ErrorResponse{Code: "unauthenticated", Message: err.Error()},
	}
}

// API implements every route independently of the web framework.
// The gin and echo bindings only decode paths, resolve the caller and
// write the returned Response.
type API struct {
	token  *mytoken.Token
	logger *slog.Logger
}

// NewAPI creates the route implementations over token.
func NewAPI(token *mytoken.Token, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{token: token, logger: logger}
}

// decode validates body against schema and unmarshals it into v.
func decode(schema string, body []byte, v interface{}) error {
	if err := types.Validate(schema, body); err != nil {
		var ve *types.ValidationError
		if errors.As(err, &ve) {
			return mytoken.NewTokenError(mytoken.ErrCodeInvalidRequest, "request body does not match schema", map[string]interface{}{
				"errors": ve.Errors,
			})
		}
		return mytoken.NewTokenError(mytoken.ErrCodeInvalidRequest, err.Error(), nil)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return mytoken.NewTokenError(mytoken.ErrCodeInvalidRequest, err.Error(), nil)
	}
	return nil
}

func receipt(r *mytoken.Receipt, err error) Response {
	if err != nil {
		return failure(err)
	}
	return ok(mytoken.ReceiptToWire(r))
}

// ============================================================================
// Read routes
// ============================================================================

func (a *API) Health() Response {
	return ok(map[string]string{"status": "ok"})
}

func (a *API) TokenInfo(ctx context.Context) Response {
	info, err := a.token.Info(ctx)
	if err != nil {
		return failure(err)
	}
	return ok(info)
}

func (a *API) Nonces(ctx context.Context, owner string) Response {
	addr, err := mytoken.ParseAddress("owner", owner)
	if err != nil {
		return failure(err)
	}
	n, err := a.token.Nonces(ctx, addr)
	if err != nil {
		return failure(err)
	}
	return ok(types.ValueResponse{Value: n.String()})
}

func (a *API) Allowance(ctx context.Context, owner, spender string) Response {
	o, err := mytoken.ParseAddress("owner", owner)
	if err != nil {
		return failure(err)
	}
	s, err := mytoken.ParseAddress("spender", spender)
	if err != nil {
		return failure(err)
	}
	v, err := a.token.Allowance(ctx, o, s)
	if err != nil {
		return failure(err)
	}
	return ok(types.ValueResponse{Value: v.String()})
}

func (a *API) SpenderAllowance(ctx context.Context, spender string) Response {
	s, err := mytoken.ParseAddress("spender", spender)
	if err != nil {
		return failure(err)
	}
	owner, v, err := a.token.SpenderAllowance(ctx, s)
	if err != nil {
		return failure(err)
	}
	return ok(types.SpenderAllowanceResponse{Owner: owner.Hex(), Value: v.String()})
}

func (a *API) Balance(ctx context.Context, account string) Response {
	addr, err := mytoken.ParseAddress("account", account)
	if err != nil {
		return failure(err)
	}
	v, err := a.token.BalanceOf(ctx, addr)
	if err != nil {
		return failure(err)
	}
	return ok(types.ValueResponse{Value: v.String()})
}

func (a *API) EmergencyAddress(ctx context.Context, owner string) Response {
	addr, err := mytoken.ParseAddress("owner", owner)
	if err != nil {
		return failure(err)
	}
	target, err := a.token.EmergencyAddress(ctx, addr)
	if err != nil {
		return failure(err)
	}
	return ok(types.AddressResponse{Address: target.Hex()})
}

// ============================================================================
// Signature-authenticated routes
// ============================================================================

func (a *API) Permit(ctx context.Context, body []byte) Response {
	var w types.PermitRequest
	if err := decode(types.PermitSchema, body, &w); err != nil {
		return failure(err)
	}
	req, err := mytoken.ParsePermitRequest(w)
	if err != nil {
		return failure(err)
	}
	return receipt(a.token.Permit(ctx, req))
}

func (a *API) PermitDigest(ctx context.Context, body []byte) Response {
	var w types.PermitDigestRequest
	if err := decode(types.PermitDigestSchema, body, &w); err != nil {
		return failure(err)
	}
	owner, err := mytoken.ParseAddress("owner", w.Owner)
	if err != nil {
		return failure(err)
	}
	spender, err := mytoken.ParseAddress("spender", w.Spender)
	if err != nil {
		return failure(err)
	}
	value, err := mytoken.ParseAmount("value", w.Value)
	if err != nil {
		return failure(err)
	}
	deadline, err := mytoken.ParseAmount("deadline", w.Deadline)
	if err != nil {
		return failure(err)
	}

	digest, nonce, err := a.token.PermitDigest(ctx, owner, spender, value, deadline)
	if err != nil {
		return failure(err)
	}
	return ok(types.PermitDigestResponse{
		Digest:          digest.Hex(),
		Nonce:           nonce.String(),
		DomainSeparator: a.token.DomainSeparator().Hex(),
	})
}

// ============================================================================
// Caller-authenticated routes
// ============================================================================

func (a *API) Approve(ctx context.Context, caller common.Address, body []byte) Response {
	var w types.ApproveRequest
	if err := decode(types.ApproveSchema, body, &w); err != nil {
		return failure(err)
	}
	spender, err := mytoken.ParseAddress("spender", w.Spender)
	if err != nil {
		return failure(err)
	}
	amount, err := mytoken.ParseAmount("amount", w.Amount)
	if err != nil {
		return failure(err)
	}
	return receipt(a.token.Approve(ctx, caller, spender, amount))
}

func (a *API) Transfer(ctx context.Context, caller common.Address, body []byte) Response {
	var w types.TransferRequest
	if err := decode(types.TransferSchema, body, &w); err != nil {
		return failure(err)
	}
	to, err := mytoken.ParseAddress("to", w.To)
	if err != nil {
		return failure(err)
	}
	amount, err := mytoken.ParseAmount("amount", w.Amount)
	if err != nil {
		return failure(err)
	}
	return receipt(a.token.Transfer(ctx, caller, to, amount))
}

func (a *API) TransferFrom(ctx context.Context, caller common.Address, body []byte) Response {
	var w types.TransferFromRequest
	if err := decode(types.TransferFromSchema, body, &w); err != nil {
		return failure(err)
	}
	from, err := mytoken.ParseAddress("from", w.From)
	if err != nil {
		return failure(err)
	}
	to, err := mytoken.ParseAddress("to", w.To)
	if err != nil {
		return failure(err)
	}
	amount, err := mytoken.ParseAmount("amount", w.Amount)
	if err != nil {
		return failure(err)
	}
	return receipt(a.token.TransferFrom(ctx, caller, from, to, amount))
}

func (a *API) SetEmergencyAddress(ctx context.Context, caller common.Address, body []byte) Response {
	var w types.EmergencyAddressRequest
	if err := decode(types.EmergencyAddressSchema, body, &w); err != nil {
		return failure(err)
	}
	target, err := mytoken.ParseAddress("address", w.Address)
	if err != nil {
		return failure(err)
	}
	return receipt(a.token.SetEmergencyAddress(ctx, caller, target))
}

func (a *API) TransferEmergency(ctx context.Context, caller common.Address) Response {
	return receipt(a.token.TransferEmergency(ctx, caller))
}

func (a *API) Mint(ctx context.Context, caller common.Address, body []byte) Response {
	var w types.MintRequest
	if err := decode(types.MintSchema, body, &w); err != nil {
		return failure(err)
	}
	to, err := mytoken.ParseAddress("to", w.To)
	if err != nil {
		return failure(err)
	}
	amount, err := mytoken.ParseAmount("amount", w.Amount)
	if err != nil {
		return failure(err)
	}
	return receipt(a.token.Mint(ctx, caller, to, amount))
}

func (a *API) Burn(ctx context.Context, caller common.Address, body []byte) Response {
	var w types.BurnRequest
	if err := decode(types.BurnSchema, body, &w); err != nil {
		return failure(err)
	}
	from, err := mytoken.ParseAddress("from", w.From)
	if err != nil {
		return failure(err)
	}
	amount, err := mytoken.ParseAmount("amount", w.Amount)
	if err != nil {
		return failure(err)
	}
	return receipt(a.token.Burn(ctx, caller, from, amount))
}
