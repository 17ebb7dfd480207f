package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNonceMismatch is returned by ConsumeNonce when the expected nonce is
	// not the owner's current nonce. State is left unchanged.
	ErrNonceMismatch = errors.New("nonce mismatch")

	// ErrInsufficientAllowance is returned when a decrease exceeds the allowance.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOverflow is returned when a credit would exceed uint256.
	ErrOverflow = errors.New("uint256 overflow")

	// ErrReadOnly is returned when a write is attempted inside View.
	ErrReadOnly = errors.New("write in read-only transaction")

	// ErrConflict is returned when an optimistic backend could not commit
	// after retrying.
	ErrConflict = errors.New("transaction conflict")

	// ErrCorrupt is returned when a stored value cannot be decoded.
	ErrCorrupt = errors.New("corrupt stored value")
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Store owns the token ledger: nonces, allowances, emergency addresses,
// balances and the consumed-signature ledger.
//
// Every mutation happens inside Update. Either all writes made by fn are
// committed or, when fn returns an error, none of them are.
// Implementations must be safe for concurrent use.
type Store interface {
	// Update runs fn in a read-write transaction.
	Update(ctx context.Context, fn func(Tx) error) error

	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error

	// Close releases backend resources.
	Close() error
}

// Tx is the operation surface of one ledger transaction.
// Amounts are uint256 values; zero is the default for absent entries.
type Tx interface {
	// Nonce returns the owner's current permit nonce.
	Nonce(owner common.Address) (*big.Int, error)

	// ConsumeNonce increments the owner's nonce if it equals expected,
	// otherwise returns ErrNonceMismatch.
	ConsumeNonce(owner common.Address, expected *big.Int) error

	Allowance(owner, spender common.Address) (*big.Int, error)

	// SetAllowance replaces the allowance. A non-zero amount also records
	// owner as the spender's grantor.
	SetAllowance(owner, spender common.Address, amount *big.Int) error

	// DecreaseAllowance subtracts amount or returns ErrInsufficientAllowance.
	DecreaseAllowance(owner, spender common.Address, amount *big.Int) error

	// Grantor returns the most recent owner that granted spender a non-zero
	// allowance. ok is false when none has.
	Grantor(spender common.Address) (owner common.Address, ok bool, err error)

	// EmergencyAddress returns the owner's rescue address, or the zero
	// address when unset.
	EmergencyAddress(owner common.Address) (common.Address, error)
	SetEmergencyAddress(owner, target common.Address) error

	SignatureUsed(owner common.Address, key common.Hash) (bool, error)
	MarkSignatureUsed(owner common.Address, key common.Hash) error

	BalanceOf(account common.Address) (*big.Int, error)
	TotalSupply() (*big.Int, error)

	// MoveValue debits from and credits to, or returns ErrInsufficientBalance.
	MoveValue(from, to common.Address, amount *big.Int) error
	Mint(to common.Address, amount *big.Int) error
	Burn(from common.Address, amount *big.Int) error
}

// kv is the primitive a backend provides to the shared ledger logic.
type kv interface {
	get(key string) (string, bool, error)
	put(key, value string) error
}

// Key layout shared by every backend.
func nonceKey(owner common.Address) string { return "nonce:" + addrKey(owner) }

func allowanceKey(owner, spender common.Address) string {
	return "allowance:" + addrKey(owner) + ":" + addrKey(spender)
}

func grantorKey(spender common.Address) string { return "grantor:" + addrKey(spender) }

func emergencyKey(owner common.Address) string { return "emergency:" + addrKey(owner) }

func balanceKey(account common.Address) string { return "balance:" + addrKey(account) }

func sigKey(owner common.Address, key common.Hash) string {
	return "sig:" + addrKey(owner) + ":" + strings.ToLower(key.Hex()[2:])
}

const supplyKey = "supply"

func addrKey(a common.Address) string {
	return strings.ToLower(a.Hex()[2:])
}

// ledgerTx implements Tx on top of a kv backend.
type ledgerTx struct {
	kv       kv
	readOnly bool
}

var _ Tx = (*ledgerTx)(nil)

func newLedgerTx(backend kv, readOnly bool) *ledgerTx {
	return &ledgerTx{kv: backend, readOnly: readOnly}
}

func (t *ledgerTx) getInt(key string) (*big.Int, error) {
	raw, ok, err := t.kv.get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s=%q", ErrCorrupt, key, raw)
	}
	return v, nil
}

func (t *ledgerTx) putInt(key string, v *big.Int) error {
	return t.put(key, v.String())
}

func (t *ledgerTx) getAddress(key string) (common.Address, bool, error) {
	raw, ok, err := t.kv.get(key)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, false, fmt.Errorf("%w: %s=%q", ErrCorrupt, key, raw)
	}
	return common.HexToAddress(raw), true, nil
}

func (t *ledgerTx) put(key, value string) error {
	if t.readOnly {
		return ErrReadOnly
	}
	return t.kv.put(key, value)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(maxUint256) > 0 {
		return fmt.Errorf("invalid amount: %v", amount)
	}
	return nil
}

func (t *ledgerTx) Nonce(owner common.Address) (*big.Int, error) {
	return t.getInt(nonceKey(owner))
}

func (t *ledgerTx) ConsumeNonce(owner common.Address, expected *big.Int) error {
	current, err := t.getInt(nonceKey(owner))
	if err != nil {
		return err
	}
	if expected == nil || current.Cmp(expected) != 0 {
		return fmt.Errorf("%w: expected %v, current %s", ErrNonceMismatch, expected, current)
	}
	return t.putInt(nonceKey(owner), current.Add(current, big.NewInt(1)))
}

func (t *ledgerTx) Allowance(owner, spender common.Address) (*big.Int, error) {
	return t.getInt(allowanceKey(owner, spender))
}

func (t *ledgerTx) SetAllowance(owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := t.putInt(allowanceKey(owner, spender), amount); err != nil {
		return err
	}
	if amount.Sign() > 0 {
		return t.put(grantorKey(spender), owner.Hex())
	}
	return nil
}

func (t *ledgerTx) DecreaseAllowance(owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	current, err := t.getInt(allowanceKey(owner, spender))
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, current, amount)
	}
	return t.putInt(allowanceKey(owner, spender), current.Sub(current, amount))
}

func (t *ledgerTx) Grantor(spender common.Address) (common.Address, bool, error) {
	return t.getAddress(grantorKey(spender))
}

func (t *ledgerTx) EmergencyAddress(owner common.Address) (common.Address, error) {
	addr, _, err := t.getAddress(emergencyKey(owner))
	return addr, err
}

func (t *ledgerTx) SetEmergencyAddress(owner, target common.Address) error {
	return t.put(emergencyKey(owner), target.Hex())
}

func (t *ledgerTx) SignatureUsed(owner common.Address, key common.Hash) (bool, error) {
	_, ok, err := t.kv.get(sigKey(owner, key))
	return ok, err
}

func (t *ledgerTx) MarkSignatureUsed(owner common.Address, key common.Hash) error {
	return t.put(sigKey(owner, key), "1")
}

func (t *ledgerTx) BalanceOf(account common.Address) (*big.Int, error) {
	return t.getInt(balanceKey(account))
}

func (t *ledgerTx) TotalSupply() (*big.Int, error) {
	return t.getInt(supplyKey)
}

func (t *ledgerTx) MoveValue(from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	fromBal, err := t.getInt(balanceKey(from))
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal, amount)
	}
	if err := t.putInt(balanceKey(from), fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	// Reread after the debit so a self-transfer nets to zero.
	toBal, err := t.getInt(balanceKey(to))
	if err != nil {
		return err
	}
	return t.putInt(balanceKey(to), toBal.Add(toBal, amount))
}

func (t *ledgerTx) Mint(to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	supply, err := t.getInt(supplyKey)
	if err != nil {
		return err
	}
	supply.Add(supply, amount)
	if supply.Cmp(maxUint256) > 0 {
		return ErrOverflow
	}
	bal, err := t.getInt(balanceKey(to))
	if err != nil {
		return err
	}
	if err := t.putInt(supplyKey, supply); err != nil {
		return err
	}
	return t.putInt(balanceKey(to), bal.Add(bal, amount))
}

func (t *ledgerTx) Burn(from common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal, err := t.getInt(balanceKey(from))
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal, amount)
	}
	supply, err := t.getInt(supplyKey)
	if err != nil {
		return err
	}
	if err := t.putInt(balanceKey(from), bal.Sub(bal, amount)); err != nil {
		return err
	}
	return t.putInt(supplyKey, supply.Sub(supply, amount))
}
