// Package ledger holds the two-party payment record, its validation and the
// balance reduction over a wallet's history.
package ledger

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// NoNote is stored when a payment was captured without a note.
const NoNote = "-"

// TimeLayout is the second-precision layout used in the record format.
const TimeLayout = "2006-01-02 15:04:05"

// MaxAmountDigits bounds the integer part so an amount always fits the
// stored column.
const MaxAmountDigits = 15

var (
	amountPattern        = regexp.MustCompile(`^[0-9]{1,15}(\.[0-9]{1,2})?$`)
	captureAmountPattern = regexp.MustCompile(`^[0-9]{1,15}(\.[0-9]{2})?$`)
)

// Payment is one immutable ledger entry: Payer contributed Amount to Wallet.
// WalletSymbol is display-only and always derived from the Directory.
type Payment struct {
	Payer        string
	Wallet       string
	Amount       string
	Note         string
	Timestamp    time.Time
	WalletSymbol string
}

// NewPayment validates the fields against dir. It does not stamp a time.
func NewPayment(dir Directory, payer, wallet, amount, note string) (Payment, error) {
	if !IsParty(dir, payer) {
		return Payment{}, &ValidationError{Field: "payer", Value: payer, Err: ErrInvalidPayer}
	}
	symbol, err := dir.SymbolFor(wallet)
	if err != nil {
		return Payment{}, &ValidationError{Field: "wallet", Value: wallet, Err: ErrInvalidWallet}
	}
	if !ValidAmount(amount) {
		return Payment{}, &ValidationError{Field: "amount", Value: amount, Err: ErrInvalidAmount}
	}
	if note == "" {
		note = NoNote
	}
	return Payment{
		Payer:        payer,
		Wallet:       wallet,
		Amount:       amount,
		Note:         note,
		WalletSymbol: symbol,
	}, nil
}

// ValidAmount accepts unsigned decimals with at most MaxAmountDigits integer
// digits and two fractional digits.
func ValidAmount(s string) bool {
	return amountPattern.MatchString(s)
}

// ValidCaptureAmount is the stricter form typed during capture: either an
// integer or exactly two fractional digits.
func ValidCaptureAmount(s string) bool {
	return captureAmountPattern.MatchString(s)
}

// At returns a copy stamped with t, truncated to seconds in UTC.
func (p Payment) At(t time.Time) Payment {
	p.Timestamp = t.UTC().Truncate(time.Second)
	return p
}

// Value parses the amount text. Invalid text yields zero.
func (p Payment) Value() decimal.Decimal {
	d, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Resolve recomputes WalletSymbol from dir. Unknown wallets keep an empty symbol.
func (p Payment) Resolve(dir Directory) Payment {
	p.WalletSymbol, _ = dir.SymbolFor(p.Wallet)
	return p
}

// Format renders the payment for chat output.
func (p Payment) Format() string {
	return fmt.Sprintf("%s paid %s %s (%s)\nNote: %s\n%s",
		p.Payer, p.Amount, p.WalletSymbol, p.Wallet, p.Note, p.Timestamp.Format(TimeLayout))
}

// Record returns the serialized form of p.
func (p Payment) Record() Record {
	return Record{
		Payer:    p.Payer,
		Amount:   p.Amount,
		Wallet:   p.Wallet,
		Note:     p.Note,
		Datetime: p.Timestamp.UTC().Format(TimeLayout),
	}
}

func (p Payment) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Record())
}

// UnmarshalJSON reads a Record. The symbol is left empty; call Resolve.
func (p *Payment) UnmarshalJSON(data []byte) error {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	ts, err := ParseTimestamp(r.Datetime)
	if err != nil {
		return err
	}
	*p = Payment{
		Payer:     r.Payer,
		Wallet:    r.Wallet,
		Amount:    r.Amount,
		Note:      r.Note,
		Timestamp: ts,
	}
	return nil
}
