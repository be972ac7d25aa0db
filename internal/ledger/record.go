package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Record is the structured text form of a payment, shared by the history
// export and the bulk import.
type Record struct {
	Payer    string `json:"payer"`
	Amount   string `json:"amount"`
	Wallet   string `json:"wallet"`
	Note     string `json:"note"`
	Datetime string `json:"datetime"`
}

// History is the export/import envelope.
type History struct {
	Payments []Record `json:"payments"`
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	TimeLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts the ISO-8601 variants seen in exported histories.
// Zone-less values are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, &ValidationError{Field: "datetime", Value: s, Err: ErrInvalidTimestamp}
}

// Payment validates r against dir and stamps its datetime.
func (r Record) Payment(dir Directory) (Payment, error) {
	p, err := NewPayment(dir, r.Payer, r.Wallet, r.Amount, r.Note)
	if err != nil {
		return Payment{}, err
	}
	ts, err := ParseTimestamp(r.Datetime)
	if err != nil {
		return Payment{}, err
	}
	return p.At(ts), nil
}

// ParseImport splits a bulk payload into raw records. Only the envelope is
// checked here; each record is decoded on its own by DecodeRecord so one bad
// entry cannot sink the batch.
func ParseImport(data []byte) ([]json.RawMessage, error) {
	var envelope struct {
		Payments json.RawMessage `json:"payments"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	trimmed := bytes.TrimSpace(envelope.Payments)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: payments must be an array: %v", ErrMalformedInput, err)
	}
	return raw, nil
}

// DecodeRecord decodes one import entry.
func DecodeRecord(raw json.RawMessage) (Record, error) {
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, &ValidationError{Field: "record", Value: string(raw), Err: ErrMalformedRecord}
	}
	return r, nil
}
