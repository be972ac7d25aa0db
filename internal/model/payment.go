package model

import "time"

// Payment is the persisted ledger row. Seq preserves insertion order for
// records sharing a timestamp; Amount keeps the captured text verbatim.
type Payment struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	ID        string    `gorm:"size:36;uniqueIndex;not null"`
	Wallet    string    `gorm:"size:64;not null;index:idx_payment_wallet_paid_at,priority:1"`
	PaidAt    time.Time `gorm:"not null;index:idx_payment_wallet_paid_at,priority:2"`
	Payer     string    `gorm:"size:64;not null"`
	Amount    string    `gorm:"size:32;not null"`
	Note      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Payment) TableName() string { return "payment" }
