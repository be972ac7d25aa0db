// Package capture drives the guided dialogue that builds one payment, and the
// shorter dialogue that reports a wallet's balance.
//
// A conversation is a plain value (Conversation) moved between states by
// Machine.Step. The Dispatcher owns the per-session storage and serializes
// inputs for the same session.
package capture

import (
	"errors"

	"github.com/richardliu001/duo-ledger/internal/ledger"
)

// Flow tells the two dialogues apart; both start at StateSelectWallet.
type Flow string

const (
	FlowPayment Flow = "payment"
	FlowBalance Flow = "balance"
)

// State is a node of the conversation graph.
type State string

const (
	StateSelectWallet State = "select_wallet"
	StateSelectPayer  State = "select_payer"
	StateEnterAmount  State = "enter_amount"
	StateEnterNote    State = "enter_note"
	StateConfirm      State = "confirm"

	StateCommitted State = "committed"
	StateCancelled State = "cancelled"
	// StateBalanceQuery ends the balance flow; the reply carries the balance.
	StateBalanceQuery State = "balance_query"
)

// Terminal reports whether the conversation has ended.
func (s State) Terminal() bool {
	switch s {
	case StateCommitted, StateCancelled, StateBalanceQuery:
		return true
	}
	return false
}

// Scratch accumulates the fields of the payment being captured.
type Scratch struct {
	Wallet  string          `json:"wallet,omitempty"`
	Payer   string          `json:"payer,omitempty"`
	Amount  string          `json:"amount,omitempty"`
	Note    string          `json:"note,omitempty"`
	Payment *ledger.Payment `json:"payment,omitempty"`
}

// Conversation is the whole per-session state.
type Conversation struct {
	Flow    Flow    `json:"flow"`
	State   State   `json:"state"`
	Scratch Scratch `json:"scratch"`
}

// Reply is what the messaging layer renders after each step.
type Reply struct {
	State   State           `json:"state"`
	Wallet  string          `json:"wallet,omitempty"`
	Options []string        `json:"options,omitempty"`
	Payment *ledger.Payment `json:"payment,omitempty"`
	Balance *ledger.Balance `json:"balance,omitempty"`
}

// Done reports whether the reply ends the conversation.
func (r Reply) Done() bool { return r.State.Terminal() }

var (
	// ErrNoConversation is returned for input outside any conversation.
	ErrNoConversation = errors.New("no active conversation")
	// ErrConversationOver is returned when stepping a finished conversation.
	ErrConversationOver = errors.New("conversation already finished")
	// ErrUnrecognizedInput is returned for input the current state ignores.
	ErrUnrecognizedInput = errors.New("unrecognized input")
	// ErrInvariant means previously validated scratch fields no longer
	// form a valid payment.
	ErrInvariant = errors.New("capture invariant violated")
)
