package repo

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/richardliu001/duo-ledger/internal/ledger"
	"github.com/richardliu001/duo-ledger/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RepositoryInterface restricts Repo methods (handy for mocking in services).
type RepositoryInterface interface {
	ledger.Gateway
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
}

// Repository implements RepositoryInterface on Postgres (gorm) with a Kafka
// outbox. The redis client backs conversation sessions, see Sessions.
type Repository struct {
	db        *gorm.DB
	rdb       *redis.Client
	writer    *kafka.Writer
	log       *zap.SugaredLogger
	recipient RecipientFunc
}

// RecipientFunc picks the chat told about an appended payment.
type RecipientFunc func(ctx context.Context, p ledger.Payment) (int64, error)

var _ RepositoryInterface = (*Repository)(nil)

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// WithRecipient sets how Append addresses the outbox notification.
func (r *Repository) WithRecipient(fn RecipientFunc) *Repository {
	r.recipient = fn
	return r
}

// Migrate creates the payment and outbox tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Payment{}, &model.OutboxEvent{})
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// outboxPayload is the event body consumed by the notification side.
type outboxPayload struct {
	ID           string `json:"id"`
	NotifyChatID int64  `json:"notify_chat_id,omitempty"`
	ledger.Record
}

// Append stores the payment and its outbox event in one transaction.
func (r *Repository) Append(ctx context.Context, p ledger.Payment) error {
	row := toRow(p)
	body := outboxPayload{ID: row.ID, Record: p.Record()}
	if r.recipient != nil {
		chat, err := r.recipient(ctx, p)
		if err != nil {
			r.log.Warnw("no notification recipient for payment", "id", row.ID, "payer", p.Payer, "error", err)
		}
		body.NotifyChatID = chat
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return &ledger.StorageError{Op: "append", Err: err}
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Create(&model.OutboxEvent{
			Aggregate:   "Payment",
			AggregateID: row.ID,
			EventType:   model.EventPaymentRecorded,
			Payload:     string(payload),
		}).Error
	})
	if err != nil {
		return &ledger.StorageError{Op: "append", Err: err}
	}
	return nil
}

// Query returns a wallet's payments (or every wallet's for AllWallets)
// ordered by payment time, ties by insertion.
func (r *Repository) Query(ctx context.Context, wallet string) ([]ledger.Payment, error) {
	q := r.db.WithContext(ctx).Order("paid_at asc").Order("seq asc")
	if wallet != ledger.AllWallets {
		q = q.Where("wallet = ?", wallet)
	}
	var rows []model.Payment
	if err := q.Find(&rows).Error; err != nil {
		return nil, &ledger.StorageError{Op: "query", Err: err}
	}
	out := make([]ledger.Payment, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed = ?", false).Order("created_at").Order("id").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	return r.writer.WriteMessages(ctx, buildMessage(evt, time.Now()))
}

// buildMessage keys the event by wallet so a wallet's events stay ordered.
// The notify_chat_id header lets consumers route without decoding the body.
func buildMessage(evt model.OutboxEvent, now time.Time) kafka.Message {
	msg := kafka.Message{
		Key:   []byte(evt.AggregateID),
		Value: []byte(evt.Payload),
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.EventType)},
			{Key: "aggregate_id", Value: []byte(evt.AggregateID)},
		},
	}
	var body outboxPayload
	if err := json.Unmarshal([]byte(evt.Payload), &body); err != nil {
		return msg
	}
	if body.Wallet != "" {
		msg.Key = []byte(body.Wallet)
	}
	if body.NotifyChatID != 0 {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "notify_chat_id", Value: []byte(strconv.FormatInt(body.NotifyChatID, 10))})
	}
	return msg
}

func toRow(p ledger.Payment) model.Payment {
	return model.Payment{
		ID:     uuid.NewString(),
		Wallet: p.Wallet,
		PaidAt: p.Timestamp.UTC(),
		Payer:  p.Payer,
		Amount: p.Amount,
		Note:   p.Note,
	}
}

// fromRow never carries a symbol; the service resolves it from config.
func fromRow(row model.Payment) ledger.Payment {
	return ledger.Payment{
		Payer:     row.Payer,
		Wallet:    row.Wallet,
		Amount:    row.Amount,
		Note:      row.Note,
		Timestamp: row.PaidAt.UTC(),
	}
}
