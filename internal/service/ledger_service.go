package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/richardliu001/duo-ledger/internal/ledger"
	"github.com/richardliu001/duo-ledger/internal/metrics"
	"go.uber.org/zap"
)

// LedgerService glues validation, the balance engine and the gateway.
type LedgerService struct {
	gw  ledger.Gateway
	dir ledger.Directory
	log *zap.SugaredLogger
	now func() time.Time
}

// NewLedgerService returns LedgerService.
func NewLedgerService(gw ledger.Gateway, dir ledger.Directory, logger *zap.SugaredLogger) *LedgerService {
	return &LedgerService{gw: gw, dir: dir, log: logger, now: time.Now}
}

// ImportResult is the outcome of one bulk import record. Err is nil when the
// record was appended.
type ImportResult struct {
	Index  int           `json:"index"`
	Record ledger.Record `json:"record"`
	Err    error         `json:"-"`
}

// OK reports whether the record was stored.
func (r ImportResult) OK() bool { return r.Err == nil }

// Record validates p against the directory and appends it. A payment without
// a timestamp is stamped with the current time.
func (s *LedgerService) Record(ctx context.Context, p ledger.Payment) error {
	checked, err := ledger.NewPayment(s.dir, p.Payer, p.Wallet, p.Amount, p.Note)
	if err != nil {
		return err
	}
	ts := p.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	checked = checked.At(ts)

	if err := s.gw.Append(ctx, checked); err != nil {
		s.log.Errorw("append payment failed", "wallet", checked.Wallet, "payer", checked.Payer, "error", err)
		return err
	}
	metrics.PaymentsRecorded.WithLabelValues(checked.Wallet).Inc()
	s.log.Infow("payment recorded", "wallet", checked.Wallet, "payer", checked.Payer, "amount", checked.Amount)
	return nil
}

// QueryBalance folds every payment of wallet into a Balance.
func (s *LedgerService) QueryBalance(ctx context.Context, wallet string) (ledger.Balance, error) {
	if !ledger.IsWallet(s.dir, wallet) {
		return ledger.Balance{}, &ledger.ValidationError{Field: "wallet", Value: wallet, Err: ledger.ErrUnknownWallet}
	}
	ps, err := s.gw.Query(ctx, wallet)
	if err != nil {
		return ledger.Balance{}, err
	}
	ids := s.dir.Identities()
	return ledger.ComputeBalance(ids[0], ids[1], ps), nil
}

// FormatBalance queries the wallet balance and renders it with its symbol.
func (s *LedgerService) FormatBalance(ctx context.Context, wallet string) (ledger.Balance, string, error) {
	b, err := s.QueryBalance(ctx, wallet)
	if err != nil {
		return ledger.Balance{}, "", err
	}
	return b, s.BalanceText(wallet, b), nil
}

// BalanceText renders an already computed balance of wallet.
func (s *LedgerService) BalanceText(wallet string, b ledger.Balance) string {
	symbol, _ := s.dir.SymbolFor(wallet)
	return b.Format(symbol)
}

// Payments returns a wallet's history (or all wallets for ledger.AllWallets)
// in chronological order with symbols resolved.
func (s *LedgerService) Payments(ctx context.Context, wallet string) ([]ledger.Payment, error) {
	if wallet != ledger.AllWallets && !ledger.IsWallet(s.dir, wallet) {
		return nil, &ledger.ValidationError{Field: "wallet", Value: wallet, Err: ledger.ErrUnknownWallet}
	}
	ps, err := s.gw.Query(ctx, wallet)
	if err != nil {
		return nil, err
	}
	ps = ledger.SortByTime(ps)
	for i := range ps {
		ps[i] = ps[i].Resolve(s.dir)
	}
	return ps, nil
}

// RecentPayments returns the last limit payments, oldest first.
func (s *LedgerService) RecentPayments(ctx context.Context, wallet string, limit int) ([]ledger.Payment, error) {
	if limit <= 0 {
		return []ledger.Payment{}, nil
	}
	ps, err := s.Payments(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if len(ps) > limit {
		ps = ps[len(ps)-limit:]
	}
	return ps, nil
}

// ImportRecords validates and appends each record independently. One bad
// record never aborts the batch.
func (s *LedgerService) ImportRecords(ctx context.Context, raw []json.RawMessage) []ImportResult {
	results := make([]ImportResult, 0, len(raw))
	for i, msg := range raw {
		res := ImportResult{Index: i}
		res.Record, res.Err = ledger.DecodeRecord(msg)
		if res.Err == nil {
			var p ledger.Payment
			if p, res.Err = res.Record.Payment(s.dir); res.Err == nil {
				res.Err = s.Record(ctx, p)
			}
		}

		switch {
		case res.Err == nil:
			metrics.ImportedRecords.WithLabelValues("ok").Inc()
		case ledger.IsValidation(res.Err):
			metrics.ImportedRecords.WithLabelValues("invalid").Inc()
			s.log.Warnw("import record rejected", "index", i, "error", res.Err)
		default:
			metrics.ImportedRecords.WithLabelValues("failed").Inc()
			s.log.Errorw("import record not stored", "index", i, "error", res.Err)
		}
		results = append(results, res)
	}
	return results
}

// ImportJSON parses a {"payments":[...]} document and imports its records.
// Only a malformed envelope fails the whole call.
func (s *LedgerService) ImportJSON(ctx context.Context, data []byte) ([]ImportResult, error) {
	raw, err := ledger.ParseImport(data)
	if err != nil {
		return nil, err
	}
	return s.ImportRecords(ctx, raw), nil
}

// ExportHistory dumps every payment in the shape ImportJSON accepts.
func (s *LedgerService) ExportHistory(ctx context.Context) ([]byte, error) {
	ps, err := s.Payments(ctx, ledger.AllWallets)
	if err != nil {
		return nil, err
	}
	h := ledger.History{Payments: make([]ledger.Record, len(ps))}
	for i, p := range ps {
		h.Payments[i] = p.Record()
	}
	return json.MarshalIndent(h, "", "  ")
}

// Directory exposes the configured parties and wallets.
func (s *LedgerService) Directory() ledger.Directory { return s.dir }

// Failed filters the unsuccessful results.
func Failed(results []ImportResult) []ImportResult {
	var out []ImportResult
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}
