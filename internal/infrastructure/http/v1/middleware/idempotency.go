package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"sage/internal/core/apperror"
	appctx "sage/internal/core/context"
	"sage/internal/infrastructure/storage/postgres"
	"sage/pkg/logger"
)

// HeaderIdempotencyKey names a client-chosen key that makes a save replayable.
const HeaderIdempotencyKey = "Idempotency-Key"

// Bulk payloads are large; the body is hashed in full up to this size.
const maxIdempotencyBodyBytes = 32 << 20

const (
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// IdempotencyStore records responses by key.
type IdempotencyStore interface {
	Acquire(ctx context.Context, key, userID, operation, requestHash string) (*postgres.Replay, error)
	Complete(ctx context.Context, key string, status int, contentType string, body any) error
	Fail(ctx context.Context, key string, status int, contentType string, body any) error
}

// Idempotency middleware replays the stored response for a repeated
// Idempotency-Key. Requests without the header pass through.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewInvalidInput("unreadable request body"))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			_ = c.Error(apperror.NewValidation("request body too large for idempotency").
				WithStatus(http.StatusRequestEntityTooLarge).
				WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		operation := c.Request.Method + " " + c.FullPath()
		userID := appctx.GetUserID(c.Request.Context())

		replay, err := store.Acquire(c.Request.Context(), key, userID, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)
		c.Next()
	}
}

func idempotencyState(c *gin.Context) (string, IdempotencyStore, bool) {
	key, ok := c.Get(ctxIdempotencyKey)
	if !ok {
		return "", nil, false
	}
	store, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return "", nil, false
	}
	s, ok := store.(IdempotencyStore)
	return key.(string), s, ok
}

// CompleteIdempotency stores a successful response for replay.
func CompleteIdempotency(c *gin.Context, status int, contentType string, body any) {
	key, store, ok := idempotencyState(c)
	if !ok {
		return
	}
	if err := store.Complete(c.Request.Context(), key, status, contentType, body); err != nil {
		logger.Warn(c.Request.Context(), "idempotency complete failed", "key", key, "error", err)
	}
}

// FailIdempotency stores an error response for replay.
func FailIdempotency(c *gin.Context, status int, body any) {
	key, store, ok := idempotencyState(c)
	if !ok {
		return
	}
	if err := store.Fail(c.Request.Context(), key, status, "application/json", body); err != nil {
		logger.Warn(c.Request.Context(), "idempotency fail failed", "key", key, "error", err)
	}
}
