package llm

import "time"

// RetryConfig bounds the per-endpoint retry behavior of Complete. A planner
// request walks the capability's fallback chain; this config governs how
// stubborn the client is with each endpoint before moving to the next one.
type RetryConfig struct {
	// MaxAttempts is how many times one endpoint is tried before the
	// client falls through to the next model in the chain.
	MaxAttempts int

	// BackoffBase is the pause after the first failed attempt.
	BackoffBase time.Duration

	// BackoffMultiplier grows the pause on each subsequent attempt.
	BackoffMultiplier float64

	// MaxBackoff caps the pause regardless of attempt count.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the stock retry settings. Planner calls are few
// and expensive, so each endpoint gets three tries with a short exponential
// backoff before the fallback chain takes over.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        20 * time.Second,
	}
}
