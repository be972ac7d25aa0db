package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/duo-ledger/internal/capture"
	"github.com/richardliu001/duo-ledger/internal/ledger"
)

const sessionKeyPrefix = "session:"

// SessionStore keeps capture conversations in Redis as JSON so they survive
// restarts and are shared between server replicas.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ capture.Store = (*SessionStore)(nil)

// NewSessionStore returns a store whose entries expire after ttl (0 keeps them).
func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

// Sessions returns a SessionStore on the repository's redis client.
func (r *Repository) Sessions(ttl time.Duration) *SessionStore {
	return NewSessionStore(r.rdb, ttl)
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func (s *SessionStore) Load(ctx context.Context, sessionID string) (capture.Conversation, bool, error) {
	val, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return capture.Conversation{}, false, nil
	}
	if err != nil {
		return capture.Conversation{}, false, &ledger.StorageError{Op: "load session", Err: err}
	}
	var conv capture.Conversation
	if err := json.Unmarshal(val, &conv); err != nil {
		return capture.Conversation{}, false, &ledger.StorageError{Op: "decode session", Err: err}
	}
	return conv, true, nil
}

func (s *SessionStore) Save(ctx context.Context, sessionID string, conv capture.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return &ledger.StorageError{Op: "encode session", Err: err}
	}
	if err := s.rdb.Set(ctx, sessionKey(sessionID), string(data), s.ttl).Err(); err != nil {
		return &ledger.StorageError{Op: "save session", Err: err}
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return &ledger.StorageError{Op: "delete session", Err: err}
	}
	return nil
}
