package mytoken

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mytoken-labs/mytoken/go/store"
)

// TransferEmergency sweeps funds of the owner that granted caller an
// allowance to that owner's emergency address.
//
// The owner is the most recent one to grant caller a non-zero allowance.
// A later grant from another owner replaces the earlier one as the sweep
// source even while the earlier allowance is still unspent, and zeroing the
// later allowance does not fall back to it.
//
// The amount moved is min(allowance, balance); the allowance decreases by
// the same amount. The receipt carries the Approval event with the new
// allowance followed by the Transfer.
func (t *Token) TransferEmergency(ctx context.Context, caller common.Address) (*Receipt, error) {
	start := time.Now()

	var (
		owner, target common.Address
		amount        *big.Int
		remaining     *big.Int
	)
	err := t.update(ctx, func(tx store.Tx) error {
		grantor, ok, err := tx.Grantor(caller)
		if err != nil {
			return err
		}
		if !ok {
			return NewTokenError(ErrCodeInsufficientAllowance, "caller holds no allowance", nil)
		}

		allowance, err := tx.Allowance(grantor, caller)
		if err != nil {
			return err
		}
		if allowance.Sign() == 0 {
			return NewTokenError(ErrCodeInsufficientAllowance, "caller holds no allowance", map[string]interface{}{
				"owner": grantor.Hex(),
			})
		}

		to, err := tx.EmergencyAddress(grantor)
		if err != nil {
			return err
		}
		if to == (common.Address{}) {
			return NewTokenError(ErrCodeInvalidEmergencyAddress, "owner has no emergency address", map[string]interface{}{
				"owner": grantor.Hex(),
			})
		}

		balance, err := tx.BalanceOf(grantor)
		if err != nil {
			return err
		}
		if balance.Sign() == 0 {
			return NewTokenError(ErrCodeInsufficientBalance, "owner balance is zero", map[string]interface{}{
				"owner": grantor.Hex(),
			})
		}

		sweep := allowance
		if balance.Cmp(sweep) < 0 {
			sweep = balance
		}

		if err := tx.MoveValue(grantor, to, sweep); err != nil {
			return err
		}
		if err := tx.DecreaseAllowance(grantor, caller, sweep); err != nil {
			return err
		}

		owner, target, amount = grantor, to, sweep
		remaining = new(big.Int).Sub(allowance, sweep)
		return nil
	})
	if err != nil {
		t.logger.Debug("emergency transfer rejected", "spender", caller.Hex(), "code", ErrorCode(err))
		return nil, err
	}

	receipt := newReceipt(
		ApprovalEvent(owner, caller, remaining),
		TransferEvent(owner, target, amount),
	)
	t.publish(receipt)

	t.hooksMu.RLock()
	hooks := t.afterEmergencyHooks
	t.hooksMu.RUnlock()

	resultCtx := EmergencyTransferResultContext{
		Ctx:      ctx,
		Spender:  caller,
		Owner:    owner,
		Target:   target,
		Amount:   amount,
		Receipt:  receipt,
		Duration: time.Since(start),
	}
	for _, hook := range hooks {
		if err := hook(resultCtx); err != nil {
			t.logger.Warn("after emergency transfer hook error", "err", err)
		}
	}

	t.logger.Info("emergency transfer",
		"owner", owner.Hex(),
		"spender", caller.Hex(),
		"target", target.Hex(),
		"value", amount.String(),
	)
	return receipt, nil
}
