package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Balance is who owes whom on one wallet. It is derived on every query and
// never stored.
type Balance struct {
	Creditor string `json:"creditor"`
	Debtor   string `json:"debtor"`
	Amount   string `json:"amount"`
}

// Settled reports whether neither party owes anything.
func (b Balance) Settled() bool { return b.Amount == "0" }

// Format renders the balance with the wallet symbol, or "0" when settled.
func (b Balance) Format(symbol string) string {
	if b.Settled() {
		return "0"
	}
	return fmt.Sprintf("%s: %s %s\n%s: 0 %s", b.Creditor, b.Amount, symbol, b.Debtor, symbol)
}

// ComputeBalance reduces records to a Balance. The running total belongs to
// partyA: a payment by partyA adds, any other payment subtracts, so whoever did
// not pay accrues the debt. Records are sorted by timestamp first; ties keep
// their input order.
func ComputeBalance(partyA, partyB string, records []Payment) Balance {
	total := decimal.Zero
	for _, p := range SortByTime(records) {
		if p.Payer == partyA {
			total = total.Add(p.Value())
		} else {
			total = total.Sub(p.Value())
		}
	}

	switch total.Sign() {
	case 0:
		return Balance{Creditor: partyA, Debtor: partyB, Amount: "0"}
	case 1:
		return Balance{Creditor: partyA, Debtor: partyB, Amount: FormatAmount(total)}
	default:
		return Balance{Creditor: partyB, Debtor: partyA, Amount: FormatAmount(total.Neg())}
	}
}

// FormatAmount rounds to cents and strips trailing zeros and a bare point:
// 12.50 -> "12.5", 10.00 -> "10", 0 -> "0".
func FormatAmount(d decimal.Decimal) string {
	s := d.Round(2).StringFixed(2)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}

// SortByTime returns a chronologically ordered copy of records.
func SortByTime(records []Payment) []Payment {
	sorted := make([]Payment, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}
