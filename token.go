package mytoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mytoken-labs/mytoken/go/mechanisms/evm"
	"github.com/mytoken-labs/mytoken/go/store"
)

// Config identifies a token instance. Name, ChainID and Address are bound
// into the EIP-712 domain; Owner gates Mint and Burn.
type Config struct {
	Name    string
	ChainID *big.Int
	Address common.Address
	Owner   common.Address
}

// Token is the permit token processing core.
//
// All mutating operations are serialized and run inside one store
// transaction, so a request either commits every side effect or none.
type Token struct {
	mu sync.Mutex

	name            string
	chainID         *big.Int
	address         common.Address
	owner           common.Address
	domainSeparator common.Hash

	store  store.Store
	logger *slog.Logger
	now    func() time.Time

	hooksMu              sync.RWMutex
	beforePermitHooks    []BeforePermitHook
	afterPermitHooks     []AfterPermitHook
	onPermitFailureHooks []OnPermitFailureHook
	afterEmergencyHooks  []AfterEmergencyTransferHook
	eventHooks           []EventHook
}

// Option configures the token
type Option func(*Token)

// WithStore sets the ledger backend. The default is an in-memory store.
func WithStore(s store.Store) Option {
	return func(t *Token) {
		t.store = s
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *Token) {
		t.logger = logger
	}
}

// WithClock overrides the time source used for deadline checks
func WithClock(now func() time.Time) Option {
	return func(t *Token) {
		t.now = now
	}
}

// New creates a token bound to cfg.
func New(cfg Config, opts ...Option) (*Token, error) {
	if cfg.Name == "" {
		return nil, errors.New("token name is required")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, errors.New("chain id must be positive")
	}
	if cfg.Address == (common.Address{}) {
		return nil, errors.New("token address is required")
	}

	ds, err := evm.DomainSeparator(cfg.Name, cfg.ChainID, cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to build domain separator: %w", err)
	}

	t := &Token{
		name:            cfg.Name,
		chainID:         new(big.Int).Set(cfg.ChainID),
		address:         cfg.Address,
		owner:           cfg.Owner,
		domainSeparator: ds,
		logger:          slog.Default(),
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}
	if t.store == nil {
		t.store = store.NewMemoryStore()
	}

	return t, nil
}

// ============================================================================
// Metadata
// ============================================================================

func (t *Token) Name() string { return t.name }

// Version is the EIP-712 domain version.
func (t *Token) Version() string { return evm.DomainVersion }

func (t *Token) ChainID() *big.Int { return new(big.Int).Set(t.chainID) }

func (t *Token) Address() common.Address { return t.address }

// Owner is the account allowed to mint and burn.
func (t *Token) Owner() common.Address { return t.owner }

// DomainSeparator returns the EIP-712 domain separator of this token.
func (t *Token) DomainSeparator() common.Hash { return t.domainSeparator }

// Domain returns the typed-data domain external signers sign under.
func (t *Token) Domain() evm.TypedDataDomain {
	return evm.NewTokenDomain(t.name, t.chainID, t.address)
}

// Close releases the ledger backend.
func (t *Token) Close() error {
	return t.store.Close()
}

// ============================================================================
// Views
// ============================================================================

func (t *Token) view(ctx context.Context, fn func(store.Tx) error) error {
	if err := t.store.View(ctx, fn); err != nil {
		return t.storeError(err)
	}
	return nil
}

// Nonces returns the owner's current permit nonce.
func (t *Token) Nonces(ctx context.Context, owner common.Address) (*big.Int, error) {
	var n *big.Int
	err := t.view(ctx, func(tx store.Tx) (err error) {
		n, err = tx.Nonce(owner)
		return err
	})
	return n, err
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	var a *big.Int
	err := t.view(ctx, func(tx store.Tx) (err error) {
		a, err = tx.Allowance(owner, spender)
		return err
	})
	return a, err
}

func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var b *big.Int
	err := t.view(ctx, func(tx store.Tx) (err error) {
		b, err = tx.BalanceOf(account)
		return err
	})
	return b, err
}

func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	var s *big.Int
	err := t.view(ctx, func(tx store.Tx) (err error) {
		s, err = tx.TotalSupply()
		return err
	})
	return s, err
}

// EmergencyAddress returns the owner's rescue address, zero when unset.
func (t *Token) EmergencyAddress(ctx context.Context, owner common.Address) (common.Address, error) {
	var a common.Address
	err := t.view(ctx, func(tx store.Tx) (err error) {
		a, err = tx.EmergencyAddress(owner)
		return err
	})
	return a, err
}

// SpenderAllowance returns the allowance a spender holds from its grantor,
// the owner a rescue sweep by this spender would draw from.
func (t *Token) SpenderAllowance(ctx context.Context, spender common.Address) (common.Address, *big.Int, error) {
	var (
		owner common.Address
		value = new(big.Int)
	)
	err := t.view(ctx, func(tx store.Tx) error {
		grantor, ok, err := tx.Grantor(spender)
		if err != nil || !ok {
			return err
		}
		owner = grantor
		value, err = tx.Allowance(grantor, spender)
		return err
	})
	return owner, value, err
}

// ============================================================================
// ERC-20 operations
// ============================================================================

// update serializes a mutating operation and maps ledger errors onto the
// token error taxonomy.
func (t *Token) update(ctx context.Context, fn func(store.Tx) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Update(ctx, fn); err != nil {
		return t.storeError(err)
	}
	return nil
}

// Approve sets the allowance spender may draw from caller.
func (t *Token) Approve(ctx context.Context, caller, spender common.Address, amount *big.Int) (*Receipt, error) {
	if err := requireAddress("spender", spender); err != nil {
		return nil, err
	}
	if err := requireAmount("amount", amount); err != nil {
		return nil, err
	}

	if err := t.update(ctx, func(tx store.Tx) error {
		return tx.SetAllowance(caller, spender, amount)
	}); err != nil {
		return nil, err
	}

	receipt := newReceipt(ApprovalEvent(caller, spender, amount))
	t.publish(receipt)
	t.logger.Info("approval", "owner", caller.Hex(), "spender", spender.Hex(), "value", amount.String())
	return receipt, nil
}

// Transfer moves amount from caller to to.
func (t *Token) Transfer(ctx context.Context, caller, to common.Address, amount *big.Int) (*Receipt, error) {
	if err := requireAddress("recipient", to); err != nil {
		return nil, err
	}
	if err := requireAmount("amount", amount); err != nil {
		return nil, err
	}

	if err := t.update(ctx, func(tx store.Tx) error {
		return tx.MoveValue(caller, to, amount)
	}); err != nil {
		return nil, err
	}

	receipt := newReceipt(TransferEvent(caller, to, amount))
	t.publish(receipt)
	return receipt, nil
}

// TransferFrom moves amount from from to to, spending caller's allowance.
// An allowance of 2^256-1 is treated as unlimited and is not decreased.
func (t *Token) TransferFrom(ctx context.Context, caller, from, to common.Address, amount *big.Int) (*Receipt, error) {
	if err := requireAddress("recipient", to); err != nil {
		return nil, err
	}
	if err := requireAmount("amount", amount); err != nil {
		return nil, err
	}

	if err := t.update(ctx, func(tx store.Tx) error {
		allowance, err := tx.Allowance(from, caller)
		if err != nil {
			return err
		}
		if allowance.Cmp(evm.MaxUint256()) != 0 {
			if err := tx.DecreaseAllowance(from, caller, amount); err != nil {
				return err
			}
		}
		return tx.MoveValue(from, to, amount)
	}); err != nil {
		return nil, err
	}

	receipt := newReceipt(TransferEvent(from, to, amount))
	t.publish(receipt)
	return receipt, nil
}

// Mint creates amount tokens for to. Only the token owner may mint.
// Minting zero is allowed.
func (t *Token) Mint(ctx context.Context, caller, to common.Address, amount *big.Int) (*Receipt, error) {
	if err := t.requireOwner(caller); err != nil {
		return nil, err
	}
	if err := requireAddress("recipient", to); err != nil {
		return nil, err
	}
	if err := requireAmount("amount", amount); err != nil {
		return nil, err
	}

	if err := t.update(ctx, func(tx store.Tx) error {
		return tx.Mint(to, amount)
	}); err != nil {
		return nil, err
	}

	receipt := newReceipt(TransferEvent(common.Address{}, to, amount))
	t.publish(receipt)
	t.logger.Info("mint", "to", to.Hex(), "value", amount.String())
	return receipt, nil
}

// Burn destroys amount tokens held by from. Only the token owner may burn.
func (t *Token) Burn(ctx context.Context, caller, from common.Address, amount *big.Int) (*Receipt, error) {
	if err := t.requireOwner(caller); err != nil {
		return nil, err
	}
	if err := requireAmount("amount", amount); err != nil {
		return nil, err
	}

	if err := t.update(ctx, func(tx store.Tx) error {
		return tx.Burn(from, amount)
	}); err != nil {
		return nil, err
	}

	receipt := newReceipt(TransferEvent(from, common.Address{}, amount))
	t.publish(receipt)
	t.logger.Info("burn", "from", from.Hex(), "value", amount.String())
	return receipt, nil
}

// SetEmergencyAddress registers target as caller's rescue address.
// Any address is accepted here, including zero; the sweep rejects zero.
func (t *Token) SetEmergencyAddress(ctx context.Context, caller, target common.Address) (*Receipt, error) {
	if err := t.update(ctx, func(tx store.Tx) error {
		return tx.SetEmergencyAddress(caller, target)
	}); err != nil {
		return nil, err
	}

	t.logger.Info("emergency address set", "owner", caller.Hex(), "target", target.Hex())
	return newReceipt(), nil
}

// ============================================================================
// Helpers
// ============================================================================

func (t *Token) requireOwner(caller common.Address) error {
	if t.owner == (common.Address{}) || caller != t.owner {
		return NewTokenError(ErrCodeUnauthorized, "caller is not the token owner", map[string]interface{}{
			"caller": caller.Hex(),
		})
	}
	return nil
}

func requireAddress(field string, a common.Address) error {
	if a == (common.Address{}) {
		return NewTokenError(ErrCodeInvalidRequest, field+" is the zero address", nil)
	}
	return nil
}

func requireAmount(field string, v *big.Int) error {
	if !evm.IsUint256(v) {
		return NewTokenError(ErrCodeInvalidRequest, field+" is not a uint256", nil)
	}
	return nil
}

// storeError maps ledger failures onto the error taxonomy.
func (t *Token) storeError(err error) error {
	var te *TokenError
	switch {
	case errors.As(err, &te):
		return te
	case errors.Is(err, store.ErrNonceMismatch):
		return NewTokenError(ErrCodeNonceMismatch, err.Error(), nil)
	case errors.Is(err, store.ErrInsufficientAllowance):
		return NewTokenError(ErrCodeInsufficientAllowance, err.Error(), nil)
	case errors.Is(err, store.ErrInsufficientBalance):
		return NewTokenError(ErrCodeInsufficientBalance, err.Error(), nil)
	case errors.Is(err, store.ErrOverflow):
		return NewTokenError(ErrCodeInvalidRequest, err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		t.logger.Error("ledger failure", "err", err)
		return NewTokenError(ErrCodeInternal, "ledger unavailable", nil)
	}
}
