package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)

	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"payment_intent.succeeded"}`)
	secret := "whsec_test"
	now := time.Now()

	header := signPayload(payload, secret, now)
	assert.NoError(t, VerifyWebhookSignature(payload, header, secret, now))
}

func TestVerifyWebhookSignature_WrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()

	header := signPayload(payload, "whsec_other", now)
	assert.ErrorIs(t, VerifyWebhookSignature(payload, header, "whsec_test", now), ErrInvalidSignature)
}

func TestVerifyWebhookSignature_TamperedPayload(t *testing.T) {
	now := time.Now()
	secret := "whsec_test"

	header := signPayload([]byte(`{"amount":100}`), secret, now)
	err := VerifyWebhookSignature([]byte(`{"amount":999}`), header, secret, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyWebhookSignature_StaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"
	now := time.Now()

	header := signPayload(payload, secret, now.Add(-10*time.Minute))
	assert.ErrorIs(t, VerifyWebhookSignature(payload, header, secret, now), ErrStaleTimestamp)
}

func TestVerifyWebhookSignature_MalformedHeader(t *testing.T) {
	payload := []byte(`{}`)

	assert.ErrorIs(t, VerifyWebhookSignature(payload, "", "whsec_test", time.Now()), ErrInvalidSignature)
	assert.ErrorIs(t, VerifyWebhookSignature(payload, "t=abc,v1=def", "whsec_test", time.Now()), ErrInvalidSignature)
	assert.ErrorIs(t, VerifyWebhookSignature(payload, "v1=deadbeef", "whsec_test", time.Now()), ErrInvalidSignature)
}
