package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/richardliu001/duo-ledger/internal/ledger"
	"github.com/richardliu001/duo-ledger/internal/logger"
	"github.com/richardliu001/duo-ledger/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(db))

	return NewRepository(db, nil, &kafka.Writer{}, must(logger.NewLogger("error")))
}

func at(h int) time.Time {
	return time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC)
}

func TestRepository_AppendWritesOutbox(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	p := ledger.Payment{Payer: "Jack", Wallet: "Toman", Amount: "250000", Note: "rent", WalletSymbol: "T"}.At(at(9))
	require.NoError(t, r.Append(ctx, p))

	var rows []model.Payment
	require.NoError(t, r.DB(ctx).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].ID, 36)
	assert.Equal(t, "250000", rows[0].Amount)

	evts, err := r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, model.EventPaymentRecorded, evts[0].EventType)
	assert.Equal(t, rows[0].ID, evts[0].AggregateID)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(evts[0].Payload), &body))
	assert.Equal(t, map[string]string{
		"id":       rows[0].ID,
		"payer":    "Jack",
		"amount":   "250000",
		"wallet":   "Toman",
		"note":     "rent",
		"datetime": "2024-01-01 09:00:00",
	}, body)

	require.NoError(t, r.MarkOutboxProcessed(ctx, evts[0].ID))
	evts, err = r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, evts)
}

func TestRepository_QueryOrdersByTimeThenInsertion(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	in := []ledger.Payment{
		{Payer: "Julia", Wallet: "Dollar", Amount: "3", Note: "late"},
		{Payer: "Jack", Wallet: "Dollar", Amount: "1", Note: "tie-first"},
		{Payer: "Julia", Wallet: "Toman", Amount: "7", Note: "other wallet"},
		{Payer: "Julia", Wallet: "Dollar", Amount: "2", Note: "tie-second"},
	}
	stamps := []time.Time{at(12), at(8), at(10), at(8)}
	for i := range in {
		require.NoError(t, r.Append(ctx, in[i].At(stamps[i])))
	}

	got, err := r.Query(ctx, "Dollar")
	require.NoError(t, err)
	var notes []string
	for _, p := range got {
		notes = append(notes, p.Note)
		assert.Empty(t, p.WalletSymbol)
	}
	assert.Equal(t, []string{"tie-first", "tie-second", "late"}, notes)
	assert.True(t, got[0].Timestamp.Equal(at(8)))

	all, err := r.Query(ctx, ledger.AllWallets)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "other wallet", all[2].Note)

	none, err := r.Query(ctx, "Euro")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_ConcurrentAppends(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := ledger.Payment{Payer: "Julia", Wallet: "Dollar", Amount: "0.01", Note: ledger.NoNote}.At(at(i))
			assert.NoError(t, r.Append(ctx, p))
		}(i)
	}
	wg.Wait()

	got, err := r.Query(ctx, "Dollar")
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Equal(t, "0.1", ledger.ComputeBalance("Julia", "Jack", got).Amount)

	var outbox int64
	require.NoError(t, r.DB(ctx).Model(&model.OutboxEvent{}).Count(&outbox).Error)
	assert.EqualValues(t, 10, outbox)
}

func TestRepository_StorageErrors(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	sqlDB, err := r.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = r.Append(ctx, ledger.Payment{Payer: "Julia", Wallet: "Dollar", Amount: "1"}.At(at(1)))
	assert.ErrorIs(t, err, ledger.ErrStorage)
	_, err = r.Query(ctx, "Dollar")
	assert.ErrorIs(t, err, ledger.ErrStorage)
}

func TestRepository_AppendAddressesRecipient(t *testing.T) {
	r := newTestRepo(t).WithRecipient(func(ctx context.Context, p ledger.Payment) (int64, error) {
		if p.Payer == "Stranger" {
			return 0, ledger.ErrUnknownIdentity
		}
		return 4321, nil
	})
	ctx := context.Background()

	require.NoError(t, r.Append(ctx, ledger.Payment{Payer: "Julia", Wallet: "Dollar", Amount: "5"}.At(at(1))))
	require.NoError(t, r.Append(ctx, ledger.Payment{Payer: "Stranger", Wallet: "Dollar", Amount: "5"}.At(at(2))))

	evts, err := r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evts, 2)

	var body outboxPayload
	require.NoError(t, json.Unmarshal([]byte(evts[0].Payload), &body))
	assert.EqualValues(t, 4321, body.NotifyChatID)
	assert.Equal(t, "Julia", body.Payer)

	// unresolved recipients still append, without an address
	assert.NotContains(t, evts[1].Payload, "notify_chat_id")
}

func TestBuildMessage(t *testing.T) {
	now := at(5)
	payload := `{"id":"abc","notify_chat_id":1234,"payer":"Jack","amount":"40","wallet":"Dollar","note":"taxi","datetime":"2024-01-01 05:00:00"}`
	msg := buildMessage(model.OutboxEvent{AggregateID: "abc", EventType: model.EventPaymentRecorded, Payload: payload}, now)

	assert.Equal(t, "Dollar", string(msg.Key))
	assert.Equal(t, now, msg.Time)
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, map[string]string{
		"event_type":     model.EventPaymentRecorded,
		"aggregate_id":   "abc",
		"notify_chat_id": "1234",
	}, headers)

	var body outboxPayload
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "abc", body.ID)
	assert.Equal(t, ledger.Record{Payer: "Jack", Amount: "40", Wallet: "Dollar", Note: "taxi", Datetime: "2024-01-01 05:00:00"}, body.Record)
}

func TestBuildMessage_UndecodablePayload(t *testing.T) {
	msg := buildMessage(model.OutboxEvent{AggregateID: "abc", EventType: "Other", Payload: "not json"}, at(1))
	assert.Equal(t, "abc", string(msg.Key))
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, []byte("not json"), msg.Value)
}

func must(l *zap.SugaredLogger, err error) *zap.SugaredLogger {
	if err != nil {
		panic(err)
	}
	return l
}
