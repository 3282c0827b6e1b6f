package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrPayloadMismatch indicates a known (key, scope) pair replayed with a different payload
	ErrPayloadMismatch = errors.New("idempotency key reused with a different payload")
	ErrRecordNotFound  = errors.New("idempotency record not found")
	ErrMissingKey      = errors.New("idempotency key is required")
)

// Record caches the response of the first execution of a (key, scope) pair
type Record struct {
	Key            string    `json:"key"`
	Scope          string    `json:"scope"`
	PayloadHash    string    `json:"payload_hash"`
	ResponseStatus int       `json:"response_status"`
	ResponseBody   []byte    `json:"response_body"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Completed reports whether a response has been stored
func (r *Record) Completed() bool {
	return r.ResponseStatus != 0
}

// Request identifies one idempotent execution
type Request struct {
	Key         string
	Scope       string
	PayloadHash string
}

// Validate checks the key is present
func (r Request) Validate() error {
	if strings.TrimSpace(r.Key) == "" {
		return ErrMissingKey
	}
	return nil
}

// Response is the cached or freshly produced result of an idempotent execution
type Response struct {
	StatusCode int
	Body       []byte
	Replayed   bool
}

// Repository persists idempotency records keyed by (key, scope)
type Repository interface {
	Get(ctx context.Context, key, scope string) (*Record, error)
	// Reserve inserts the record if (key, scope) is absent and reports whether it did
	Reserve(ctx context.Context, record *Record) (bool, error)
	Complete(ctx context.Context, key, scope string, status int, body []byte) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// HashPayload returns the hex SHA-256 of the JSON encoding of v
func HashPayload(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload for hashing: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// ClientScope builds the scope for client mutations: <method>:<resolved path>:<actor>
func ClientScope(method, resolvedPath, actorID string) string {
	return strings.ToUpper(method) + ":" + resolvedPath + ":" + actorID
}

// WebhookScope builds the scope for processor webhooks: <method>:<path>:<processor>
func WebhookScope(method, path, processorID string) string {
	return strings.ToUpper(method) + ":" + path + ":" + processorID
}
