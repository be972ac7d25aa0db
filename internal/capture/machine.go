package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/richardliu001/duo-ledger/internal/ledger"
	"github.com/richardliu001/duo-ledger/internal/metrics"
	"go.uber.org/zap"
)

// Ledger is the part of the ledger service the dialogue needs.
type Ledger interface {
	Record(ctx context.Context, p ledger.Payment) error
	QueryBalance(ctx context.Context, wallet string) (ledger.Balance, error)
}

// Triggers are the distinguished inputs of the dialogue.
type Triggers struct {
	Cancel string
	Skip   string
	Yes    string
	No     string
}

// DefaultTriggers matches the chat commands and confirmation keyboard.
func DefaultTriggers() Triggers {
	return Triggers{Cancel: "/cancel", Skip: "/skip", Yes: "Yes", No: "No"}
}

// Machine moves Conversation values through the capture and balance flows.
// It holds no per-session state.
type Machine struct {
	dir      ledger.Directory
	ledger   Ledger
	log      *zap.SugaredLogger
	now      func() time.Time
	triggers Triggers
}

type Option func(*Machine)

// WithClock replaces time.Now for payment timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithTriggers(t Triggers) Option {
	return func(m *Machine) { m.triggers = t }
}

func NewMachine(dir ledger.Directory, l Ledger, log *zap.SugaredLogger, opts ...Option) *Machine {
	m := &Machine{dir: dir, ledger: l, log: log, now: time.Now, triggers: DefaultTriggers()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Triggers returns the configured trigger words.
func (m *Machine) Triggers() Triggers { return m.triggers }

// Begin starts a flow at wallet selection with empty scratch.
func (m *Machine) Begin(flow Flow) (Conversation, Reply) {
	conv := Conversation{Flow: flow, State: StateSelectWallet}
	return conv, m.prompt(conv)
}

// Step applies one input. On error the returned conversation is conv itself,
// so callers can keep the stored value as is.
func (m *Machine) Step(ctx context.Context, conv Conversation, input string) (Conversation, Reply, error) {
	input = strings.TrimSpace(input)
	if conv.State.Terminal() {
		return conv, m.prompt(conv), ErrConversationOver
	}
	if input == m.triggers.Cancel {
		return m.transition(conv, Conversation{Flow: conv.Flow, State: StateCancelled}), Reply{State: StateCancelled}, nil
	}

	next := conv
	switch conv.State {
	case StateSelectWallet:
		if !ledger.IsWallet(m.dir, input) {
			return conv, m.prompt(conv), &ledger.ValidationError{Field: "wallet", Value: input, Err: ledger.ErrInvalidWallet}
		}
		if conv.Flow == FlowBalance {
			return m.reportBalance(ctx, conv, input)
		}
		next.Scratch.Wallet = input
		next.State = StateSelectPayer

	case StateSelectPayer:
		if !ledger.IsParty(m.dir, input) {
			return conv, m.prompt(conv), &ledger.ValidationError{Field: "payer", Value: input, Err: ledger.ErrInvalidPayer}
		}
		next.Scratch.Payer = input
		next.State = StateEnterAmount

	case StateEnterAmount:
		if !ledger.ValidCaptureAmount(input) {
			return conv, m.prompt(conv), &ledger.ValidationError{Field: "amount", Value: input, Err: ledger.ErrInvalidAmount}
		}
		next.Scratch.Amount = input
		next.State = StateEnterNote

	case StateEnterNote:
		note := input
		switch {
		case input == m.triggers.Skip:
			note = ledger.NoNote
		case strings.HasPrefix(input, "/"):
			return conv, m.prompt(conv), fmt.Errorf("%w: command %q is not a note", ErrUnrecognizedInput, input)
		}
		s := conv.Scratch
		p, err := ledger.NewPayment(m.dir, s.Payer, s.Wallet, s.Amount, note)
		if err != nil {
			m.log.Errorw("scratch no longer forms a payment", "scratch", s, "error", err)
			return conv, m.prompt(conv), fmt.Errorf("%w: %v", ErrInvariant, err)
		}
		p = p.At(m.now())
		next.Scratch.Note = p.Note
		next.Scratch.Payment = &p
		next.State = StateConfirm

	case StateConfirm:
		switch input {
		case m.triggers.Yes:
			return m.commit(ctx, conv)
		case m.triggers.No:
			return m.transition(conv, Conversation{Flow: conv.Flow, State: StateCancelled}), Reply{State: StateCancelled}, nil
		}
		return conv, m.prompt(conv), fmt.Errorf("%w: expected %s or %s", ErrUnrecognizedInput, m.triggers.Yes, m.triggers.No)

	default:
		return conv, Reply{State: conv.State}, fmt.Errorf("%w: unknown state %q", ErrInvariant, conv.State)
	}

	next = m.transition(conv, next)
	return next, m.prompt(next), nil
}

// commit appends the confirmed payment. A failed append leaves the
// conversation in Confirm so the user can retry.
func (m *Machine) commit(ctx context.Context, conv Conversation) (Conversation, Reply, error) {
	if conv.Scratch.Payment == nil {
		return conv, m.prompt(conv), fmt.Errorf("%w: confirm without payment", ErrInvariant)
	}
	p := *conv.Scratch.Payment
	if err := m.ledger.Record(ctx, p); err != nil {
		return conv, m.prompt(conv), err
	}

	reply := Reply{State: StateCommitted, Wallet: p.Wallet, Payment: resolved(m.dir, p)}
	bal, err := m.ledger.QueryBalance(ctx, p.Wallet)
	if err != nil {
		m.log.Warnw("payment recorded but balance unavailable", "wallet", p.Wallet, "error", err)
	} else {
		reply.Balance = &bal
	}
	return m.transition(conv, Conversation{Flow: conv.Flow, State: StateCommitted}), reply, nil
}

func (m *Machine) reportBalance(ctx context.Context, conv Conversation, wallet string) (Conversation, Reply, error) {
	bal, err := m.ledger.QueryBalance(ctx, wallet)
	if err != nil {
		return conv, m.prompt(conv), err
	}
	next := m.transition(conv, Conversation{Flow: conv.Flow, State: StateBalanceQuery, Scratch: Scratch{Wallet: wallet}})
	return next, Reply{State: StateBalanceQuery, Wallet: wallet, Balance: &bal}, nil
}

func (m *Machine) transition(from, to Conversation) Conversation {
	metrics.CaptureTransitions.WithLabelValues(string(from.State), string(to.State)).Inc()
	m.log.Debugw("conversation transition", "flow", from.Flow, "from", from.State, "to", to.State)
	return to
}

// prompt describes what conv is waiting for.
func (m *Machine) prompt(conv Conversation) Reply {
	r := Reply{State: conv.State, Wallet: conv.Scratch.Wallet}
	switch conv.State {
	case StateSelectWallet:
		r.Options = m.dir.WalletNames()
	case StateSelectPayer:
		ids := m.dir.Identities()
		r.Options = ids[:]
	case StateEnterNote:
		r.Options = []string{m.triggers.Skip}
	case StateConfirm:
		r.Options = []string{m.triggers.Yes, m.triggers.No}
		if conv.Scratch.Payment != nil {
			r.Payment = resolved(m.dir, *conv.Scratch.Payment)
		}
	}
	return r
}

func resolved(dir ledger.Directory, p ledger.Payment) *ledger.Payment {
	p = p.Resolve(dir)
	return &p
}
