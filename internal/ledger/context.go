package ledger

import "context"

type recordedByKey struct{}

// WithRecordedBy tags ctx with the chat that is recording a payment.
func WithRecordedBy(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, recordedByKey{}, chatID)
}

// RecordedBy returns the chat set by WithRecordedBy. Imports carry none.
func RecordedBy(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(recordedByKey{}).(string)
	return id, ok && id != ""
}
