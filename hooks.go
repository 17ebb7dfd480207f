package mytoken

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ============================================================================
// Hook Context Types
// ============================================================================

// PermitContext contains information passed to permit hooks
type PermitContext struct {
	Ctx       context.Context
	Request   PermitRequest
	Timestamp time.Time
}

// PermitResultContext contains a permit result and context
type PermitResultContext struct {
	PermitContext
	Receipt  *Receipt
	Nonce    *big.Int
	Duration time.Duration
}

// PermitFailureContext contains a permit failure and context
type PermitFailureContext struct {
	PermitContext
	Error    error
	Duration time.Duration
}

// EmergencyTransferResultContext contains a completed rescue sweep
type EmergencyTransferResultContext struct {
	Ctx      context.Context
	Spender  common.Address
	Owner    common.Address
	Target   common.Address
	Amount   *big.Int
	Receipt  *Receipt
	Duration time.Duration
}

// ============================================================================
// Hook Result Types
// ============================================================================

// BeforeHookResult represents the result of a "before" hook
// If Abort is true, the operation will be rejected with the given Reason
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Hook Function Types
// ============================================================================

// BeforePermitHook is called before a permit is processed.
// If it returns a result with Abort=true, the permit is rejected as
// unauthorized and no state changes.
type BeforePermitHook func(PermitContext) (*BeforeHookResult, error)

// AfterPermitHook is called after a permit is applied
// Any error returned will be logged but will not affect the result
type AfterPermitHook func(PermitResultContext) error

// OnPermitFailureHook is called when a permit is rejected
type OnPermitFailureHook func(PermitFailureContext) error

// AfterEmergencyTransferHook is called after a rescue sweep commits
// Any error returned will be logged but will not affect the result
type AfterEmergencyTransferHook func(EmergencyTransferResultContext) error

// EventHook receives every event emitted by a committed operation, in order
type EventHook func(Event)

// ============================================================================
// Hook Registration Methods
// ============================================================================

func (t *Token) OnBeforePermit(hook BeforePermitHook) *Token {
	t.hooksMu.Lock()
	defer t.hooksMu.Unlock()
	t.beforePermitHooks = append(t.beforePermitHooks, hook)
	return t
}

func (t *Token) OnAfterPermit(hook AfterPermitHook) *Token {
	t.hooksMu.Lock()
	defer t.hooksMu.Unlock()
	t.afterPermitHooks = append(t.afterPermitHooks, hook)
	return t
}

func (t *Token) OnPermitFailure(hook OnPermitFailureHook) *Token {
	t.hooksMu.Lock()
	defer t.hooksMu.Unlock()
	t.onPermitFailureHooks = append(t.onPermitFailureHooks, hook)
	return t
}

func (t *Token) OnAfterEmergencyTransfer(hook AfterEmergencyTransferHook) *Token {
	t.hooksMu.Lock()
	defer t.hooksMu.Unlock()
	t.afterEmergencyHooks = append(t.afterEmergencyHooks, hook)
	return t
}

func (t *Token) OnEvent(hook EventHook) *Token {
	t.hooksMu.Lock()
	defer t.hooksMu.Unlock()
	t.eventHooks = append(t.eventHooks, hook)
	return t
}

func (t *Token) publish(r *Receipt) {
	t.hooksMu.RLock()
	hooks := t.eventHooks
	t.hooksMu.RUnlock()

	for _, e := range r.Logs {
		for _, hook := range hooks {
			hook(e)
		}
	}
}
