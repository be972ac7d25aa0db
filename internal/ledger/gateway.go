package ledger

import "context"

// AllWallets queries every wallet at once.
const AllWallets = ""

// Gateway is the persistence contract the core consumes. Append is atomic
// per record and durable on return. Query returns records in insertion
// order; callers sort by timestamp before reducing.
type Gateway interface {
	Append(ctx context.Context, p Payment) error
	Query(ctx context.Context, wallet string) ([]Payment, error)
}
