package repo

import (
	"context"
	"sync"

	"github.com/richardliu001/duo-ledger/internal/ledger"
)

// MemoryGateway is an insertion-ordered, append-only ledger.Gateway for
// tests and local runs. FailAppend/FailQuery inject storage failures.
type MemoryGateway struct {
	mu       sync.RWMutex
	payments []ledger.Payment

	FailAppend error
	FailQuery  error
}

var _ ledger.Gateway = (*MemoryGateway)(nil)

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{}
}

func (m *MemoryGateway) Append(_ context.Context, p ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppend != nil {
		return &ledger.StorageError{Op: "append", Err: m.FailAppend}
	}
	p.WalletSymbol = ""
	m.payments = append(m.payments, p)
	return nil
}

func (m *MemoryGateway) Query(_ context.Context, wallet string) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailQuery != nil {
		return nil, &ledger.StorageError{Op: "query", Err: m.FailQuery}
	}
	var out []ledger.Payment
	for _, p := range m.payments {
		if wallet == ledger.AllWallets || p.Wallet == wallet {
			out = append(out, p)
		}
	}
	return out, nil
}

// Len reports how many payments were appended.
func (m *MemoryGateway) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.payments)
}
