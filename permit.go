package mytoken

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mytoken-labs/mytoken/go/mechanisms/evm"
	"github.com/mytoken-labs/mytoken/go/store"
)

// PermitRequest is a signed EIP-2612 permit submission.
type PermitRequest struct {
	Owner    common.Address
	Spender  common.Address
	Value    *big.Int
	Deadline *big.Int

	// Nonce is optional. When set it must equal the owner's current nonce;
	// the digest is always built from the tracked nonce.
	Nonce *big.Int

	Signature evm.Signature
}

func (r PermitRequest) validate() error {
	if err := requireAmount("value", r.Value); err != nil {
		return err
	}
	if err := requireAmount("deadline", r.Deadline); err != nil {
		return err
	}
	if r.Nonce != nil {
		if err := requireAmount("nonce", r.Nonce); err != nil {
			return err
		}
	}
	return nil
}

// PermitDigest returns the digest owner must sign to grant spender value
// until deadline, together with the nonce it is bound to.
func (t *Token) PermitDigest(ctx context.Context, owner, spender common.Address, value, deadline *big.Int) (common.Hash, *big.Int, error) {
	if err := requireAmount("value", value); err != nil {
		return common.Hash{}, nil, err
	}
	if err := requireAmount("deadline", deadline); err != nil {
		return common.Hash{}, nil, err
	}

	nonce, err := t.Nonces(ctx, owner)
	if err != nil {
		return common.Hash{}, nil, err
	}

	digest, err := t.digest(evm.Permit{
		Owner:    owner,
		Spender:  spender,
		Value:    value,
		Nonce:    nonce,
		Deadline: deadline,
	})
	if err != nil {
		return common.Hash{}, nil, err
	}
	return digest, nonce, nil
}

func (t *Token) digest(p evm.Permit) (common.Hash, error) {
	structHash, err := evm.HashPermitStruct(p)
	if err != nil {
		return common.Hash{}, NewTokenError(ErrCodeInvalidRequest, err.Error(), nil)
	}
	return evm.TypedDataDigest(t.domainSeparator, structHash), nil
}

// Permit applies a signed permit.
//
// Checks run in order and stop at the first failure: deadline, caller
// nonce, signature recovery against the tracked nonce, nonce consumption.
// On success the nonce advances by one, the allowance is replaced by Value
// and an Approval event is emitted.
//
// Resubmitting an applied signature fails with ErrNonceMismatch: the
// signature no longer matches the advanced nonce and is found in the
// owner's consumed-signature ledger.
func (t *Token) Permit(ctx context.Context, req PermitRequest) (*Receipt, error) {
	start := time.Now()
	hookCtx := PermitContext{
		Ctx:       ctx,
		Request:   req,
		Timestamp: start,
	}

	t.hooksMu.RLock()
	beforeHooks := t.beforePermitHooks
	afterHooks := t.afterPermitHooks
	failureHooks := t.onPermitFailureHooks
	t.hooksMu.RUnlock()

	fail := func(err error) (*Receipt, error) {
		failureCtx := PermitFailureContext{PermitContext: hookCtx, Error: err, Duration: time.Since(start)}
		for _, hook := range failureHooks {
			if hookErr := hook(failureCtx); hookErr != nil {
				t.logger.Warn("permit failure hook error", "err", hookErr)
			}
		}
		t.logger.Debug("permit rejected",
			"owner", req.Owner.Hex(),
			"spender", req.Spender.Hex(),
			"code", ErrorCode(err),
		)
		return nil, err
	}

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return fail(err)
		}
		if result != nil && result.Abort {
			return fail(NewTokenError(ErrCodeUnauthorized, result.Reason, nil))
		}
	}

	if err := req.validate(); err != nil {
		return fail(err)
	}

	now := big.NewInt(t.now().Unix())
	if req.Deadline.Cmp(now) < 0 {
		return fail(NewTokenError(ErrCodePermitExpired, "permit deadline has passed", map[string]interface{}{
			"deadline": req.Deadline.String(),
			"now":      now.String(),
		}))
	}

	var consumed *big.Int
	err := t.update(ctx, func(tx store.Tx) error {
		nonce, err := tx.Nonce(req.Owner)
		if err != nil {
			return err
		}
		if req.Nonce != nil && req.Nonce.Cmp(nonce) != 0 {
			return NewTokenError(ErrCodeNonceMismatch, "nonce does not match the owner's current nonce", map[string]interface{}{
				"expected": nonce.String(),
				"got":      req.Nonce.String(),
			})
		}

		digest, err := t.digest(evm.Permit{
			Owner:    req.Owner,
			Spender:  req.Spender,
			Value:    req.Value,
			Nonce:    nonce,
			Deadline: req.Deadline,
		})
		if err != nil {
			return err
		}

		signer, ok := evm.RecoverSigner(digest, req.Signature)
		if !ok || signer != req.Owner {
			used, err := tx.SignatureUsed(req.Owner, req.Signature.Key())
			if err != nil {
				return err
			}
			if used {
				return NewTokenError(ErrCodeNonceMismatch, "signature was already used; nonce has advanced", map[string]interface{}{
					"nonce": nonce.String(),
				})
			}
			return NewTokenError(ErrCodeInvalidSignature, "signature does not recover to owner", nil)
		}

		if err := tx.ConsumeNonce(req.Owner, nonce); err != nil {
			return err
		}
		if err := tx.SetAllowance(req.Owner, req.Spender, req.Value); err != nil {
			return err
		}
		if err := tx.MarkSignatureUsed(req.Owner, req.Signature.Key()); err != nil {
			return err
		}

		consumed = nonce
		return nil
	})
	if err != nil {
		return fail(err)
	}

	receipt := newReceipt(ApprovalEvent(req.Owner, req.Spender, req.Value))
	t.publish(receipt)

	resultCtx := PermitResultContext{PermitContext: hookCtx, Receipt: receipt, Nonce: consumed, Duration: time.Since(start)}
	for _, hook := range afterHooks {
		if err := hook(resultCtx); err != nil {
			t.logger.Warn("after permit hook error", "err", err)
		}
	}

	t.logger.Info("permit applied",
		"owner", req.Owner.Hex(),
		"spender", req.Spender.Hex(),
		"value", req.Value.String(),
		"nonce", consumed.String(),
	)
	return receipt, nil
}
