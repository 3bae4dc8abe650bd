package services

import (
	"time"

	"github.com/kerbaras/mangacache/pkg/config"
	"github.com/kerbaras/mangacache/pkg/sources"
)

// DelayFunc returns how long to wait before the given attempt (2, 3, ...).
type DelayFunc func(attempt int) time.Duration

// RetryPolicy bounds how often a page image is requested. A nil Delay
// retries immediately.
type RetryPolicy struct {
	MaxAttempts int
	Delay       DelayFunc
}

const defaultMaxAttempts = 3

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultMaxAttempts}
}

func ConstantDelay(d time.Duration) DelayFunc {
	return func(int) time.Duration { return d }
}

// ExponentialDelay doubles base for every attempt after the second, up to max.
// A max <= 0 means no cap.
func ExponentialDelay(base, max time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		d := base
		for i := 2; i < attempt; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// RetryPolicyFromConfig builds the policy described by the [downloads] section.
func RetryPolicyFromConfig(cfg config.Downloads) RetryPolicy {
	policy := RetryPolicy{MaxAttempts: cfg.MaxAttempts}
	delay := time.Duration(cfg.RetryDelayMillis) * time.Millisecond
	if delay <= 0 {
		return policy
	}
	switch cfg.RetryBackoff {
	case config.BackoffExponential:
		policy.Delay = ExponentialDelay(delay, 30*time.Second)
	default:
		policy.Delay = ConstantDelay(delay)
	}
	return policy
}

// FetcherOption applies the policy to an HTTP image fetcher.
func (p RetryPolicy) FetcherOption() sources.ImageFetcherOption {
	return sources.WithRetry(p.MaxAttempts, p.Delay)
}
