package payment

import (
	"fmt"
	"strings"

	"github.com/storefront/backend/internal/infrastructure/config"
)

// StripeConfig holds configuration for the Stripe hosted checkout
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string

	// Currency is the ISO currency used for every session (e.g. "usd")
	Currency string

	// AllowedCountries restricts shipping address collection
	AllowedCountries []string
}

// StripeConfigFromPayment builds a StripeConfig from application config
func StripeConfigFromPayment(cfg config.PaymentConfig) *StripeConfig {
	return &StripeConfig{
		SecretKey:        cfg.StripeSecretKey,
		Currency:         strings.ToLower(cfg.Currency),
		AllowedCountries: cfg.AllowedCountries,
	}
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	if !strings.HasPrefix(c.SecretKey, "sk_test_") && !strings.HasPrefix(c.SecretKey, "sk_live_") &&
		!strings.HasPrefix(c.SecretKey, "rk_") {
		return fmt.Errorf("stripe: secret key has an unexpected format")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("stripe: currency must be a 3-letter ISO code, got %q", c.Currency)
	}
	return nil
}

// IsTestMode reports whether the key targets Stripe test mode
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.SecretKey, "sk_test_")
}
