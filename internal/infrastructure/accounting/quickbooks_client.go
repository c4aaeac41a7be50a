package accounting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/config"
)

// QuickBooksClient implements the ProviderClient port for QuickBooks Online.
type QuickBooksClient struct {
	config     config.ProviderConfig
	httpClient *http.Client
}

// NewQuickBooksClient creates a QuickBooks client from provider configuration.
func NewQuickBooksClient(cfg config.ProviderConfig) (*QuickBooksClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("quickbooks: base URL is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("quickbooks: access token is required")
	}
	return &QuickBooksClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}, nil
}

// ProviderCode returns the provider this client talks to.
func (c *QuickBooksClient) ProviderCode() accounting.ProviderCode {
	return accounting.ProviderCodeQuickBooks
}

// SyncInvoice pushes the invoice to the QuickBooks invoice endpoint and
// returns the document id QuickBooks assigned.
func (c *QuickBooksClient) SyncInvoice(ctx context.Context, invoice *accounting.InvoiceSyncState) (*accounting.SyncOutcome, error) {
	payload := quickBooksInvoice{
		DocNumber:   invoice.InvoiceNumber,
		TotalAmt:    invoice.TotalAmount.String(),
		CurrencyRef: quickBooksRef{Value: invoice.Currency},
		PrivateNote: invoice.InvoiceID.String(),
	}

	url := c.config.BaseURL + "/v3/invoice"
	status, body, err := postJSON(ctx, c.httpClient, c.ProviderCode(), url, c.config.AccessToken, payload)
	if err != nil {
		return nil, err
	}

	if status >= 400 {
		var errResp quickBooksErrorResponse
		_ = json.Unmarshal(body, &errResp)
		return nil, classifyStatus(c.ProviderCode(), status, errResp.text())
	}

	var resp quickBooksInvoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &accounting.TransientProviderError{
			Provider: c.ProviderCode(),
			Message:  fmt.Sprintf("failed to parse response: %v", err),
		}
	}
	if resp.Invoice.ID == "" {
		return nil, &accounting.TransientProviderError{
			Provider: c.ProviderCode(),
			Message:  "response missing invoice id",
		}
	}

	return &accounting.SyncOutcome{ExternalID: resp.Invoice.ID}, nil
}

// VerifyWebhookSignature checks the intuit-signature header value: a base64
// HMAC-SHA256 over the raw payload.
func (c *QuickBooksClient) VerifyWebhookSignature(payload []byte, signature string) error {
	if c.config.WebhookSecret == "" {
		return accounting.ErrProviderNotConfigured
	}
	return verifyHMACBase64(c.config.WebhookSecret, payload, signature)
}

// Ensure QuickBooksClient implements ProviderClient interface
var _ accounting.ProviderClient = (*QuickBooksClient)(nil)
