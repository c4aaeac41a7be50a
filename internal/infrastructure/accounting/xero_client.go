package accounting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/config"
)

// XeroClient implements the ProviderClient port for Xero.
type XeroClient struct {
	config     config.ProviderConfig
	httpClient *http.Client
}

// NewXeroClient creates a Xero client from provider configuration.
func NewXeroClient(cfg config.ProviderConfig) (*XeroClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("xero: base URL is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("xero: access token is required")
	}
	return &XeroClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}, nil
}

// ProviderCode returns the provider this client talks to.
func (c *XeroClient) ProviderCode() accounting.ProviderCode {
	return accounting.ProviderCodeXero
}

// SyncInvoice pushes the invoice to Xero's batch Invoices endpoint and
// returns the document id Xero assigned.
func (c *XeroClient) SyncInvoice(ctx context.Context, invoice *accounting.InvoiceSyncState) (*accounting.SyncOutcome, error) {
	payload := xeroInvoiceRequest{
		Invoices: []xeroInvoice{{
			Type:          "ACCREC",
			InvoiceNumber: invoice.InvoiceNumber,
			Reference:     invoice.InvoiceID.String(),
			CurrencyCode:  invoice.Currency,
			Total:         invoice.TotalAmount.String(),
			Status:        "AUTHORISED",
		}},
	}

	url := c.config.BaseURL + "/api.xro/2.0/Invoices"
	status, body, err := postJSON(ctx, c.httpClient, c.ProviderCode(), url, c.config.AccessToken, payload)
	if err != nil {
		return nil, err
	}

	if status >= 400 {
		var errResp xeroErrorResponse
		_ = json.Unmarshal(body, &errResp)
		return nil, classifyStatus(c.ProviderCode(), status, errResp.text())
	}

	var resp xeroInvoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &accounting.TransientProviderError{
			Provider: c.ProviderCode(),
			Message:  fmt.Sprintf("failed to parse response: %v", err),
		}
	}
	if len(resp.Invoices) == 0 || resp.Invoices[0].InvoiceID == "" {
		return nil, &accounting.TransientProviderError{
			Provider: c.ProviderCode(),
			Message:  "response missing invoice id",
		}
	}

	return &accounting.SyncOutcome{ExternalID: resp.Invoices[0].InvoiceID}, nil
}

// VerifyWebhookSignature checks the x-xero-signature header value: a base64
// HMAC-SHA256 over the raw payload.
func (c *XeroClient) VerifyWebhookSignature(payload []byte, signature string) error {
	if c.config.WebhookSecret == "" {
		return accounting.ErrProviderNotConfigured
	}
	return verifyHMACBase64(c.config.WebhookSecret, payload, signature)
}

// Ensure XeroClient implements ProviderClient interface
var _ accounting.ProviderClient = (*XeroClient)(nil)
