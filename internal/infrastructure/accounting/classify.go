package accounting

import (
	"context"
	"errors"
	"net/http"

	"github.com/CleanExpo/RestoreAssist-sub010/internal/domain/accounting"
)

// classifyStatus maps a provider HTTP status code to the domain error
// taxonomy. Credential problems surface as auth-expired so the integration
// can be flagged for reconnection; throttling and server-side failures are
// transient; every other client error is permanent because retrying the same
// document cannot change the outcome.
func classifyStatus(provider accounting.ProviderCode, status int, message string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &accounting.AuthExpiredError{Provider: provider, Message: message}
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return &accounting.TransientProviderError{Provider: provider, StatusCode: status, Message: message}
	case status >= 400:
		return &accounting.PermanentProviderError{Provider: provider, StatusCode: status, Message: message}
	default:
		return nil
	}
}

// classifyTransport maps a transport-level failure (connection refused, DNS,
// timeout) to a transient error. A cancelled context is passed through
// unchanged so shutdown does not masquerade as a provider outage.
func classifyTransport(provider accounting.ProviderCode, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &accounting.TransientProviderError{Provider: provider, Message: err.Error()}
}
