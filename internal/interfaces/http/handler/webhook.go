package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/shared"
)

// Maximum webhook payload size (64KB - provider event payloads are small)
const maxWebhookPayloadSize = 65536

// signatureHeaders maps each provider to the header it delivers its HMAC
// signature in.
var signatureHeaders = map[accounting.ProviderCode]string{
	accounting.ProviderCodeXero:       "X-Xero-Signature",
	accounting.ProviderCodeQuickBooks: "Intuit-Signature",
	accounting.ProviderCodeMYOB:       "X-Myob-Signature",
}

// WebhookReceiver is the application surface the webhook endpoint depends on.
type WebhookReceiver interface {
	Receive(ctx context.Context, provider accounting.ProviderCode, payload []byte, signature string) (*accounting.WebhookEvent, error)
}

// WebhookHandler handles inbound provider webhook endpoints. These endpoints
// are called by the accounting platforms and authenticate by signature, not
// by tenant credentials.
type WebhookHandler struct {
	BaseHandler
	receiver WebhookReceiver
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(receiver WebhookReceiver) *WebhookHandler {
	return &WebhookHandler{
		receiver: receiver,
	}
}

// WebhookAckResponse represents the acknowledgment returned to the provider
type WebhookAckResponse struct {
	Received bool   `json:"received"`
	EventID  string `json:"event_id,omitempty"`
	Status   string `json:"status,omitempty"`
	Message  string `json:"message,omitempty"`
}

// HandleWebhook receives a provider event, verifies its signature, and
// buffers it for asynchronous application. A 2xx acknowledges receipt only;
// a non-2xx makes the provider redeliver.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := accounting.ProviderCode(strings.ToUpper(c.Param("provider")))
	if !provider.IsValid() {
		c.JSON(http.StatusNotFound, WebhookAckResponse{
			Received: false,
			Message:  "Unknown provider",
		})
		return
	}

	// The raw body is required for signature verification.
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookAckResponse{
			Received: false,
			Message:  "Failed to read request body",
		})
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, WebhookAckResponse{
			Received: false,
			Message:  "Payload too large",
		})
		return
	}

	header := signatureHeaders[provider]
	signature := c.GetHeader(header)
	if signature == "" {
		c.JSON(http.StatusUnauthorized, WebhookAckResponse{
			Received: false,
			Message:  "Missing " + header + " header",
		})
		return
	}

	event, err := h.receiver.Receive(c.Request.Context(), provider, payload, signature)
	if err != nil {
		h.respondReceiveError(c, err)
		return
	}

	c.JSON(http.StatusOK, WebhookAckResponse{
		Received: true,
		EventID:  event.ID.String(),
		Status:   event.Status.String(),
		Message:  "Webhook buffered for processing",
	})
}

// respondReceiveError maps receipt failures to the status the provider's
// redelivery logic expects: 4xx for events that will never be accepted, 503
// when the buffer is unavailable and a redelivery should be attempted.
func (h *WebhookHandler) respondReceiveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, accounting.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, WebhookAckResponse{
			Received: false,
			Message:  "Webhook signature verification failed",
		})
	case errors.Is(err, accounting.ErrProviderNotConfigured):
		c.JSON(http.StatusNotFound, WebhookAckResponse{
			Received: false,
			Message:  "Provider is not configured",
		})
	default:
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			c.JSON(http.StatusBadRequest, WebhookAckResponse{
				Received: false,
				Message:  domainErr.Message,
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, WebhookAckResponse{
			Received: false,
			Message:  "Event could not be buffered, please redeliver",
		})
	}
}
