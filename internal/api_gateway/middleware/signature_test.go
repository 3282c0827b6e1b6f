package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := []byte("s3cret")
	body := []byte(`{"idempotency_key":"evt-1"}`)
	valid := Sign(secret, body)

	assert.True(t, strings.HasPrefix(valid, "sha256="))
	assert.NoError(t, VerifySignature(secret, body, valid))
	assert.ErrorIs(t, VerifySignature(secret, body, ""), errMissingSignature)
	assert.ErrorIs(t, VerifySignature(secret, body, "md5=abc"), errMalformedSignature)
	assert.ErrorIs(t, VerifySignature(secret, body, "sha256=zz"), errMalformedSignature)
	assert.ErrorIs(t, VerifySignature(secret, body, "sha256=abcd"), errMalformedSignature)
	assert.ErrorIs(t, VerifySignature([]byte("other"), body, valid), errSignatureMismatch)
	assert.ErrorIs(t, VerifySignature(secret, []byte(`{"idempotency_key":"evt-2"}`), valid), errSignatureMismatch)
}

func TestWebhookSignatureMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := "s3cret"
	body := `{"idempotency_key":"evt-1","authorization_code":"ABCDEF0123456789"}`

	newRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(CorrelationID())
		router.POST("/webhook", WebhookSignature(slog.New(slog.NewJSONHandler(io.Discard, nil)), secret, "X-Signature"), func(c *gin.Context) {
			raw, err := io.ReadAll(c.Request.Body)
			if err != nil {
				c.Status(http.StatusInternalServerError)
				return
			}
			c.String(http.StatusOK, string(raw))
		})
		return router
	}

	testCases := []struct {
		name      string
		signature string
		expected  int
	}{
		{"ValidSignature", Sign([]byte(secret), []byte(body)), http.StatusOK},
		{"MissingSignature", "", http.StatusUnauthorized},
		{"MalformedSignature", "sha1=deadbeef", http.StatusBadRequest},
		{"WrongSignature", Sign([]byte("wrong"), []byte(body)), http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
			if tc.signature != "" {
				req.Header.Set("X-Signature", tc.signature)
			}
			rr := httptest.NewRecorder()
			newRouter().ServeHTTP(rr, req)

			assert.Equal(t, tc.expected, rr.Code)
			if tc.expected == http.StatusOK {
				assert.Equal(t, body, rr.Body.String(), "handler must see the unmodified body")
			} else {
				assert.Contains(t, rr.Body.String(), `"correlation_id"`)
			}
		})
	}
}
