package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPayload(t *testing.T) {
	type payload struct {
		CardID string `json:"card_id"`
		Amount int64  `json:"amount_minor"`
	}

	h1, err := HashPayload(payload{CardID: "c-1", Amount: 1000})
	require.NoError(t, err)
	h2, err := HashPayload(payload{CardID: "c-1", Amount: 1000})
	require.NoError(t, err)
	h3, err := HashPayload(payload{CardID: "c-1", Amount: 900})
	require.NoError(t, err)

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	_, err = HashPayload(make(chan int))
	assert.Error(t, err)
}

func TestScopes(t *testing.T) {
	assert.Equal(t, "PATCH:/api/v1/cards/abc/status:user-1", ClientScope("patch", "/api/v1/cards/abc/status", "user-1"))
	assert.Equal(t, "POST:/webhooks/processor:card-processor", WebhookScope("POST", "/webhooks/processor", "card-processor"))
}

func TestRequest_Validate(t *testing.T) {
	assert.ErrorIs(t, Request{Key: "  "}.Validate(), ErrMissingKey)
	assert.NoError(t, Request{Key: "k"}.Validate())
}

func TestRecord_Completed(t *testing.T) {
	assert.False(t, (&Record{}).Completed())
	assert.True(t, (&Record{ResponseStatus: 200}).Completed())
}
