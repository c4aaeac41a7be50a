// Package accounting contains the HTTP client adapters for external
// accounting platforms. Each adapter translates our invoice projection into
// the platform's document shape and maps responses onto the domain error
// taxonomy.
package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 10 * 1024 * 1024 // 10MB max response

// defaultClientTimeout is a transport-level backstop. The orchestrator's
// per-call context deadline is the authoritative bound.
const defaultClientTimeout = 60 * time.Second

// postJSON sends an authenticated JSON request and returns the status code
// and body. Transport failures are classified as transient for the provider.
func postJSON(ctx context.Context, client *http.Client, provider accounting.ProviderCode, url, token string, payload any) (int, []byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: failed to marshal request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%s: failed to create request: %w", provider, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, classifyTransport(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, classifyTransport(provider, err)
	}

	return resp.StatusCode, body, nil
}
