package billing

import (
	"errors"
	"strings"
)

// StripeConfig contains configuration for Stripe provider.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// Currency is the ISO 4217 code payments are charged in, lowercase.
	// Default: "usd"
	Currency string

	// ConfirmOnCreate confirms the PaymentIntent in the create call.
	// When false the intent is created pending and confirmed separately.
	ConfirmOnCreate bool

	// StatementDescriptor is the suffix shown on the customer's card statement.
	StatementDescriptor string

	// MaxRetries is the maximum number of retries for transient failures
	// Default: 3
	MaxRetries int

	// TimeoutSeconds is the HTTP timeout for Stripe API calls in seconds
	// Default: 30
	TimeoutSeconds int
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("stripe: API key is required")
	}
	if !strings.HasPrefix(c.APIKey, "sk_") && !strings.HasPrefix(c.APIKey, "rk_") {
		return ErrInvalidAPIKey
	}
	if len(c.StatementDescriptor) > 22 {
		return errors.New("stripe: statement descriptor must be at most 22 characters")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_") || strings.HasPrefix(c.APIKey, "rk_test_")
}

func (c *StripeConfig) withDefaults() StripeConfig {
	out := *c
	out.Currency = strings.ToLower(strings.TrimSpace(out.Currency))
	if out.Currency == "" {
		out.Currency = "usd"
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = 3
	}
	if out.TimeoutSeconds <= 0 {
		out.TimeoutSeconds = 30
	}
	return out
}
