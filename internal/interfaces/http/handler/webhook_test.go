package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/shared"
)

// fakeReceiver implements WebhookReceiver with pluggable behavior.
type fakeReceiver struct {
	receiveFn func(ctx context.Context, provider accounting.ProviderCode, payload []byte, signature string) (*accounting.WebhookEvent, error)
}

func (f *fakeReceiver) Receive(ctx context.Context, provider accounting.ProviderCode, payload []byte, signature string) (*accounting.WebhookEvent, error) {
	return f.receiveFn(ctx, provider, payload, signature)
}

func newWebhookRouter(receiver WebhookReceiver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(receiver)

	engine := gin.New()
	engine.POST("/webhooks/:provider", h.HandleWebhook)
	return engine
}

func postWebhook(engine *gin.Engine, provider string, payload []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeAck(t *testing.T, w *httptest.ResponseRecorder) WebhookAckResponse {
	t.Helper()
	var ack WebhookAckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	return ack
}

func TestWebhookHandler_HandleWebhook(t *testing.T) {
	payload := []byte(`{"event_id":"evt-1","event_type":"PAYMENT_RECEIVED","document_id":"xero-9"}`)

	t.Run("accepts a signed event and acknowledges with the buffered id", func(t *testing.T) {
		event := accounting.NewWebhookEvent(uuid.New(), accounting.ProviderCodeXero,
			accounting.WebhookEventPaymentReceived, "evt-1", "xero-9", payload, time.Now())

		var gotProvider accounting.ProviderCode
		var gotSignature string
		receiver := &fakeReceiver{
			receiveFn: func(_ context.Context, provider accounting.ProviderCode, _ []byte, signature string) (*accounting.WebhookEvent, error) {
				gotProvider = provider
				gotSignature = signature
				return event, nil
			},
		}
		engine := newWebhookRouter(receiver)

		w := postWebhook(engine, "xero", payload, map[string]string{"X-Xero-Signature": "sig-abc"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, accounting.ProviderCodeXero, gotProvider)
		assert.Equal(t, "sig-abc", gotSignature)

		ack := decodeAck(t, w)
		assert.True(t, ack.Received)
		assert.Equal(t, event.ID.String(), ack.EventID)
		assert.Equal(t, "PENDING", ack.Status)
	})

	t.Run("reads the signature from the provider's own header", func(t *testing.T) {
		receiver := &fakeReceiver{
			receiveFn: func(_ context.Context, provider accounting.ProviderCode, p []byte, _ string) (*accounting.WebhookEvent, error) {
				return accounting.NewWebhookEvent(uuid.New(), provider,
					accounting.WebhookEventInvoiceUpdated, "evt-2", "qb-1", p, time.Now()), nil
			},
		}
		engine := newWebhookRouter(receiver)

		w := postWebhook(engine, "quickbooks", payload, map[string]string{"Intuit-Signature": "sig-qb"})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects an unknown provider path", func(t *testing.T) {
		engine := newWebhookRouter(&fakeReceiver{})

		w := postWebhook(engine, "sage", payload, map[string]string{"X-Sage-Signature": "sig"})

		assert.Equal(t, http.StatusNotFound, w.Code)
		ack := decodeAck(t, w)
		assert.False(t, ack.Received)
	})

	t.Run("rejects a missing signature header", func(t *testing.T) {
		engine := newWebhookRouter(&fakeReceiver{})

		w := postWebhook(engine, "xero", payload, nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		ack := decodeAck(t, w)
		assert.Contains(t, ack.Message, "X-Xero-Signature")
	})

	t.Run("rejects an invalid signature", func(t *testing.T) {
		receiver := &fakeReceiver{
			receiveFn: func(_ context.Context, _ accounting.ProviderCode, _ []byte, _ string) (*accounting.WebhookEvent, error) {
				return nil, accounting.ErrInvalidSignature
			},
		}
		engine := newWebhookRouter(receiver)

		w := postWebhook(engine, "xero", payload, map[string]string{"X-Xero-Signature": "forged"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects an oversized payload", func(t *testing.T) {
		engine := newWebhookRouter(&fakeReceiver{})
		huge := bytes.Repeat([]byte("x"), maxWebhookPayloadSize+1)

		w := postWebhook(engine, "myob", huge, map[string]string{"X-Myob-Signature": "sig"})

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("maps a malformed payload to 400", func(t *testing.T) {
		receiver := &fakeReceiver{
			receiveFn: func(_ context.Context, _ accounting.ProviderCode, _ []byte, _ string) (*accounting.WebhookEvent, error) {
				return nil, shared.NewDomainError("INVALID_PAYLOAD", "Webhook payload is not valid JSON")
			},
		}
		engine := newWebhookRouter(receiver)

		w := postWebhook(engine, "xero", []byte("not json"), map[string]string{"X-Xero-Signature": "sig"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		ack := decodeAck(t, w)
		assert.Equal(t, "Webhook payload is not valid JSON", ack.Message)
	})

	t.Run("asks for redelivery when buffering fails", func(t *testing.T) {
		receiver := &fakeReceiver{
			receiveFn: func(_ context.Context, _ accounting.ProviderCode, _ []byte, _ string) (*accounting.WebhookEvent, error) {
				return nil, errors.New("database is down")
			},
		}
		engine := newWebhookRouter(receiver)

		w := postWebhook(engine, "xero", payload, map[string]string{"X-Xero-Signature": "sig"})

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		ack := decodeAck(t, w)
		assert.False(t, ack.Received)
	})

	t.Run("surfaces an unconfigured provider as 404", func(t *testing.T) {
		receiver := &fakeReceiver{
			receiveFn: func(_ context.Context, _ accounting.ProviderCode, _ []byte, _ string) (*accounting.WebhookEvent, error) {
				return nil, accounting.ErrProviderNotConfigured
			},
		}
		engine := newWebhookRouter(receiver)

		w := postWebhook(engine, "myob", payload, map[string]string{"X-Myob-Signature": "sig"})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
