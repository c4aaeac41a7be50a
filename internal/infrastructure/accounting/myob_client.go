package accounting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
	"github.com/CleanExpo/RestoreAssist-sub010/internal/infrastructure/config"
)

// MYOBClient implements the ProviderClient port for MYOB Business.
type MYOBClient struct {
	config     config.ProviderConfig
	httpClient *http.Client
}

// NewMYOBClient creates a MYOB client from provider configuration.
func NewMYOBClient(cfg config.ProviderConfig) (*MYOBClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("myob: base URL is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("myob: access token is required")
	}
	return &MYOBClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}, nil
}

// ProviderCode returns the provider this client talks to.
func (c *MYOBClient) ProviderCode() accounting.ProviderCode {
	return accounting.ProviderCodeMYOB
}

// SyncInvoice pushes the invoice to the MYOB sale invoice endpoint and
// returns the UID MYOB assigned.
func (c *MYOBClient) SyncInvoice(ctx context.Context, invoice *accounting.InvoiceSyncState) (*accounting.SyncOutcome, error) {
	payload := myobInvoice{
		Number:        invoice.InvoiceNumber,
		ExternalRef:   invoice.InvoiceID.String(),
		TotalAmount:   invoice.TotalAmount.String(),
		CurrencyCode:  invoice.Currency,
		InvoiceStatus: "Open",
	}

	url := c.config.BaseURL + "/sale/Invoice/Service"
	status, body, err := postJSON(ctx, c.httpClient, c.ProviderCode(), url, c.config.AccessToken, payload)
	if err != nil {
		return nil, err
	}

	if status >= 400 {
		var errResp myobErrorResponse
		_ = json.Unmarshal(body, &errResp)
		return nil, classifyStatus(c.ProviderCode(), status, errResp.text())
	}

	var resp myobInvoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &accounting.TransientProviderError{
			Provider: c.ProviderCode(),
			Message:  fmt.Sprintf("failed to parse response: %v", err),
		}
	}
	if resp.UID == "" {
		return nil, &accounting.TransientProviderError{
			Provider: c.ProviderCode(),
			Message:  "response missing document UID",
		}
	}

	return &accounting.SyncOutcome{ExternalID: resp.UID}, nil
}

// VerifyWebhookSignature checks the x-myobapi-signature header value: a hex
// HMAC-SHA256 over the raw payload.
func (c *MYOBClient) VerifyWebhookSignature(payload []byte, signature string) error {
	if c.config.WebhookSecret == "" {
		return accounting.ErrProviderNotConfigured
	}
	return verifyHMACHex(c.config.WebhookSecret, payload, signature)
}

// Ensure MYOBClient implements ProviderClient interface
var _ accounting.ProviderClient = (*MYOBClient)(nil)
