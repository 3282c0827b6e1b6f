package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const signaturePrefix = "sha256="

var (
	errMissingSignature   = errors.New("missing signature")
	errMalformedSignature = errors.New("malformed signature header")
	errSignatureMismatch  = errors.New("signature mismatch")
)

// Sign returns the header value for body: sha256=<hex HMAC-SHA256(secret, body)>
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC of the raw body in constant time
func VerifySignature(secret, body []byte, header string) error {
	if header == "" {
		return errMissingSignature
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return errMalformedSignature
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil || len(got) != sha256.Size {
		return errMalformedSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return errSignatureMismatch
	}
	return nil
}

// WebhookSignature rejects processor webhooks whose signature does not match the
// unmodified request body. The body is restored for the handler after reading.
func WebhookSignature(logger *slog.Logger, secret, headerName string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.Error("Failed to read webhook body", "error", err)
			abortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "Unreadable request body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if err := VerifySignature(key, body, c.GetHeader(headerName)); err != nil {
			requestLogger := logger
			if correlationID := GetCorrelationID(c); correlationID != "" {
				requestLogger = logger.With("correlation_id", correlationID)
			}
			requestLogger.Warn("Rejected webhook signature", "path", c.Request.URL.Path, "reason", err.Error())

			if errors.Is(err, errMalformedSignature) {
				abortWithError(c, http.StatusBadRequest, "BAD_REQUEST", "Malformed signature header")
				return
			}
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid webhook signature")
			return
		}

		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, response)
}
