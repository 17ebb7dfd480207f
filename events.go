package mytoken

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventName identifies an emitted ledger event
type EventName string

const (
	EventApproval EventName = "Approval"
	EventTransfer EventName = "Transfer"
)

// Event is an observable ledger change.
// Approval events fill Owner, Spender and Value (the new allowance).
// Transfer events fill From, To and Value (the amount moved).
type Event struct {
	Name    EventName
	Owner   common.Address
	Spender common.Address
	From    common.Address
	To      common.Address
	Value   *big.Int
}

// ApprovalEvent builds an Approval(owner, spender, value) event.
func ApprovalEvent(owner, spender common.Address, value *big.Int) Event {
	return Event{Name: EventApproval, Owner: owner, Spender: spender, Value: new(big.Int).Set(value)}
}

// TransferEvent builds a Transfer(from, to, value) event.
func TransferEvent(from, to common.Address, value *big.Int) Event {
	return Event{Name: EventTransfer, From: from, To: to, Value: new(big.Int).Set(value)}
}

// Receipt is returned by every mutating operation that succeeds.
type Receipt struct {
	ID   string
	Logs []Event
}

func newReceipt(logs ...Event) *Receipt {
	return &Receipt{ID: uuid.NewString(), Logs: logs}
}

// Event returns the first log with the given name.
func (r *Receipt) Event(name EventName) (Event, bool) {
	if r == nil {
		return Event{}, false
	}
	for _, e := range r.Logs {
		if e.Name == name {
			return e, true
		}
	}
	return Event{}, false
}
