package billing

import (
	"errors"
	"strings"
)

// ProviderConfig holds the connection settings for the subscription-billing
// provider's HTTP API.
type ProviderConfig struct {
	// APIBaseURL is the provider API root, e.g. "https://api.example.com/api/v1".
	APIBaseURL string
	// Username and Password authenticate every call (HTTP basic auth).
	Username string
	Password string
	// CampaignID is the single provider campaign this site operates on.
	CampaignID int
	// StraightSaleSKU is the fixed SKU of the placeholder product routing
	// non-subscription purchases through provider checkout.
	StraightSaleSKU string
	// TimeoutSeconds bounds each HTTP round-trip.
	TimeoutSeconds int
	// MaxRetries bounds transport-level retries per call. Provider-reported
	// errors are never retried.
	MaxRetries int
	// PageSize is the page size used by the campaign and product listings.
	PageSize int
}

// Validate checks the configuration for completeness.
func (c *ProviderConfig) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("billing: provider API base URL is required")
	}
	if c.Username == "" || c.Password == "" {
		return errors.New("billing: provider credentials are required")
	}
	if c.CampaignID <= 0 {
		return errors.New("billing: provider campaign id must be positive")
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.StraightSaleSKU == "" {
		c.StraightSaleSKU = "STRAIGHT-SALE"
	}
	return nil
}
