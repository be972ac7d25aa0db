package capture

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/richardliu001/duo-ledger/internal/ledger"
	"go.uber.org/zap"
)

// Store keeps one Conversation per session.
type Store interface {
	Load(ctx context.Context, sessionID string) (Conversation, bool, error)
	Save(ctx context.Context, sessionID string, conv Conversation) error
	Delete(ctx context.Context, sessionID string) error
}

// Dispatcher binds sessions to conversations. Inputs for one session are
// handled one at a time; different sessions proceed in parallel.
type Dispatcher struct {
	machine *Machine
	store   Store
	log     *zap.SugaredLogger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewDispatcher(m *Machine, store Store, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{machine: m, store: store, log: log, locks: make(map[string]*sessionLock)}
}

// BeginCapture starts the payment flow, replacing whatever the session held.
func (d *Dispatcher) BeginCapture(ctx context.Context, sessionID string) (Reply, error) {
	return d.begin(ctx, sessionID, FlowPayment)
}

// BeginBalanceQuery starts the balance flow.
func (d *Dispatcher) BeginBalanceQuery(ctx context.Context, sessionID string) (Reply, error) {
	return d.begin(ctx, sessionID, FlowBalance)
}

func (d *Dispatcher) begin(ctx context.Context, sessionID string, flow Flow) (Reply, error) {
	unlock := d.lock(sessionID)
	defer unlock()

	conv, reply := d.machine.Begin(flow)
	if err := d.store.Save(ctx, sessionID, conv); err != nil {
		return Reply{}, err
	}
	d.log.Infow("conversation started", "session", sessionID, "flow", flow)
	return reply, nil
}

// HandleInput feeds one message to the session's conversation. Rejected input
// leaves the stored conversation untouched; terminal states clear it.
func (d *Dispatcher) HandleInput(ctx context.Context, sessionID, text string) (Reply, error) {
	unlock := d.lock(sessionID)
	defer unlock()

	conv, ok, err := d.store.Load(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		if strings.TrimSpace(text) == d.machine.Triggers().Cancel {
			return Reply{State: StateCancelled}, nil
		}
		return Reply{}, ErrNoConversation
	}

	next, reply, err := d.machine.Step(ledger.WithRecordedBy(ctx, sessionID), conv, text)
	if err != nil {
		if errors.Is(err, ErrConversationOver) {
			if derr := d.store.Delete(ctx, sessionID); derr != nil {
				d.log.Warnw("failed to clear finished conversation", "session", sessionID, "error", derr)
			}
		}
		d.log.Debugw("input rejected", "session", sessionID, "state", conv.State, "error", err)
		return reply, err
	}

	if next.State.Terminal() {
		if err := d.store.Delete(ctx, sessionID); err != nil {
			return reply, err
		}
		d.log.Infow("conversation finished", "session", sessionID, "flow", next.Flow, "state", next.State)
		return reply, nil
	}
	if err := d.store.Save(ctx, sessionID, next); err != nil {
		return reply, err
	}
	return reply, nil
}

func (d *Dispatcher) lock(sessionID string) func() {
	d.mu.Lock()
	l, ok := d.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		d.locks[sessionID] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, sessionID)
		}
		d.mu.Unlock()
	}
}
