package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sage/internal/core/apperror"
)

// IdempotencyStatus is the lifecycle of a keyed request.
type IdempotencyStatus string

const (
	IdempotencyPending IdempotencyStatus = "pending"
	IdempotencyDone    IdempotencyStatus = "done"
	IdempotencyFailed  IdempotencyStatus = "failed"
)

// staleAfter is how long a pending key blocks retries before it is reclaimed.
const staleAfter = time.Minute

// Replay is a stored response sent back for a repeated request.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type idempotencyRecord struct {
	Key         string            `db:"idempotency_key"`
	UserID      string            `db:"user_id"`
	Operation   string            `db:"operation"`
	Status      IdempotencyStatus `db:"status"`
	RequestHash string            `db:"request_hash"`
	Response    []byte            `db:"response"`
	StatusCode  int               `db:"response_status"`
	ContentType string            `db:"response_content_type"`
	Inserted    bool              `db:"inserted"`
	UpdatedAt   time.Time         `db:"updated_at"`
}

// IdempotencyStore remembers responses by Idempotency-Key so a retried bulk
// save does not insert its rows twice.
type IdempotencyStore struct {
	db  QuerierSource
	ttl time.Duration
	now func() time.Time
}

func NewIdempotencyStore(db QuerierSource, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{db: db, ttl: ttl, now: time.Now}
}

// Acquire claims key for this request. It returns a Replay when the key
// already finished, nil when the caller should proceed, and a Conflict when
// the key is in flight or was used for a different request.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, userID, operation, requestHash string) (*Replay, error) {
	now := s.now().UTC()
	q := s.db.GetQuerier(ctx)

	var rec idempotencyRecord
	err := q.QueryRow(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET expires_at = GREATEST(idempotency_keys.expires_at, EXCLUDED.expires_at)
		RETURNING idempotency_key, user_id, operation, status, request_hash, response, response_status,
			response_content_type, (xmax = 0) AS inserted, updated_at`,
		key, userID, operation, IdempotencyPending, requestHash, now, now.Add(s.ttl),
	).Scan(&rec.Key, &rec.UserID, &rec.Operation, &rec.Status, &rec.RequestHash, &rec.Response,
		&rec.StatusCode, &rec.ContentType, &rec.Inserted, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if rec.Inserted {
		return nil, nil
	}

	if rec.UserID != userID || rec.Operation != operation || rec.RequestHash != requestHash {
		return nil, apperror.NewConflict("idempotency key was used for a different request").
			WithDetail("idempotency_key", key)
	}

	switch rec.Status {
	case IdempotencyDone, IdempotencyFailed:
		return &Replay{StatusCode: replayStatus(rec.StatusCode), ContentType: replayContentType(rec.ContentType), Body: rec.Response}, nil
	}

	if now.Sub(rec.UpdatedAt) <= staleAfter {
		return nil, apperror.NewConflict("a request with this idempotency key is in progress").
			WithDetail("idempotency_key", key)
	}
	if _, err := q.Exec(ctx, `UPDATE idempotency_keys SET updated_at = $1 WHERE idempotency_key = $2 AND status = $3`,
		now, key, IdempotencyPending); err != nil {
		return nil, fmt.Errorf("reclaim idempotency key: %w", err)
	}
	return nil, nil
}

// Complete stores the response of a successful request.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, status int, contentType string, body any) error {
	return s.finish(ctx, key, IdempotencyDone, status, contentType, body)
}

// Fail stores the response of a failed request.
func (s *IdempotencyStore) Fail(ctx context.Context, key string, status int, contentType string, body any) error {
	return s.finish(ctx, key, IdempotencyFailed, status, contentType, body)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, st IdempotencyStatus, status int, contentType string, body any) error {
	var raw []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			b, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		raw = b
	}
	_, err := s.db.GetQuerier(ctx).Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $1, response = $2, response_status = $3, response_content_type = $4, updated_at = $5
		WHERE idempotency_key = $6`,
		st, raw, status, contentType, s.now().UTC(), key)
	return err
}

// CleanupExpired deletes keys past their expiry.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.GetQuerier(ctx).Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func replayStatus(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

func replayContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}
