package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	idempotencyPrefix = "idempotency:"

	// In-car clients retry meter actions within minutes of a dropped
	// response.
	idempotencyTTL = time.Hour
)

// replay is a stored response for a keyed request.
type replay struct {
	Status      int             `json:"status"`
	ContentType string          `json:"content_type,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// recordingWriter tees the response body so it can be stored.
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response when a meter action is
// retried with the same Idempotency-Key. Keys are scoped to the method and
// path, so a key sent to /stop never replays a /finalize.
func IdempotencyMiddleware(client redis.Cmdable, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if key == "" || !mutating(c.Request.Method) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storeKey := idempotencyPrefix + c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		stored, err := loadReplay(ctx, client, storeKey)
		switch {
		case err == nil:
			c.Header(replayedHeader, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		case !errors.Is(err, redis.Nil):
			// Serve the request without replay protection rather than fail it.
			logger.Warn("idempotency lookup failed", zap.String("route", c.FullPath()), zap.Error(err))
			c.Next()
			return
		}

		w := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// Server errors are not stored so the client can retry them.
		status := w.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		r := &replay{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}
		if err := storeReplay(ctx, client, storeKey, r); err != nil {
			logger.Warn("idempotency store failed", zap.String("route", c.FullPath()), zap.Error(err))
		}
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func loadReplay(ctx context.Context, client redis.Cmdable, key string) (*replay, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var r replay
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func storeReplay(ctx context.Context, client redis.Cmdable, key string, r *replay) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, data, idempotencyTTL).Err()
}
