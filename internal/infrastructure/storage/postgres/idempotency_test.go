package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/core/apperror"
	"sage/internal/infrastructure/storage/postgres"
	"sage/internal/infrastructure/storage/postgres/pgtest"
)

func keyRow(status postgres.IdempotencyStatus, hash string, inserted bool, updated time.Time, body []byte, code int) []any {
	return []any{"k1", "u1", "POST /save", string(status), hash, body, code, "application/json", inserted, updated}
}

var keyCols = []string{"idempotency_key", "user_id", "operation", "status", "request_hash", "response",
	"response_status", "response_content_type", "inserted", "updated_at"}

func TestIdempotency_FirstRequestProceeds(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "INSERT INTO idempotency_keys", Columns: keyCols,
		Rows: [][]any{keyRow(postgres.IdempotencyPending, "h", true, time.Now(), nil, 0)}})
	store := postgres.NewIdempotencyStore(rec, time.Hour)

	replay, err := store.Acquire(context.Background(), "k1", "u1", "POST /save", "h")
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestIdempotency_CompletedRequestReplays(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "INSERT INTO idempotency_keys", Columns: keyCols,
		Rows: [][]any{keyRow(postgres.IdempotencyDone, "h", false, time.Now(), []byte(`{"rows_inserted":2}`), 201)}})
	store := postgres.NewIdempotencyStore(rec, time.Hour)

	replay, err := store.Acquire(context.Background(), "k1", "u1", "POST /save", "h")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.JSONEq(t, `{"rows_inserted":2}`, string(replay.Body))
}

func TestIdempotency_DifferentBodyConflicts(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "INSERT INTO idempotency_keys", Columns: keyCols,
		Rows: [][]any{keyRow(postgres.IdempotencyDone, "other", false, time.Now(), nil, 200)}})
	store := postgres.NewIdempotencyStore(rec, time.Hour)

	_, err := store.Acquire(context.Background(), "k1", "u1", "POST /save", "h")
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestIdempotency_InFlightConflicts(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "INSERT INTO idempotency_keys", Columns: keyCols,
		Rows: [][]any{keyRow(postgres.IdempotencyPending, "h", false, time.Now(), nil, 0)}})
	store := postgres.NewIdempotencyStore(rec, time.Hour)

	_, err := store.Acquire(context.Background(), "k1", "u1", "POST /save", "h")
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestIdempotency_StalePendingIsReclaimed(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "INSERT INTO idempotency_keys", Columns: keyCols,
		Rows: [][]any{keyRow(postgres.IdempotencyPending, "h", false, time.Now().Add(-time.Hour), nil, 0)}})
	store := postgres.NewIdempotencyStore(rec, time.Hour)

	replay, err := store.Acquire(context.Background(), "k1", "u1", "POST /save", "h")
	require.NoError(t, err)
	assert.Nil(t, replay)
	assert.Contains(t, rec.Last().SQL, "UPDATE idempotency_keys SET updated_at")
}

func TestIdempotency_CompleteStoresBody(t *testing.T) {
	rec := pgtest.New()
	store := postgres.NewIdempotencyStore(rec, time.Hour)

	require.NoError(t, store.Complete(context.Background(), "k1", 201, "application/json", map[string]int{"rows_inserted": 2}))
	args := rec.Last().Args
	assert.Equal(t, postgres.IdempotencyDone, args[0])
	assert.JSONEq(t, `{"rows_inserted":2}`, string(args[1].([]byte)))
	assert.Equal(t, "k1", args[5])
}
