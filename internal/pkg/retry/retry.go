package retry

import (
	"math"
	"time"

	"github.com/avast/retry-go/v4"

	pkghttp "github.com/futig/manual-assistant/pkg/http"
)

const (
	defaultAttempts = 3
	defaultDelay    = time.Second
	defaultMaxDelay = 10 * time.Second
)

type RetryConfig struct {
	Attempts uint          `env:"ATTEMPTS" envDefault:"3"`
	Delay    time.Duration `env:"DELAY" envDefault:"1s"`
	MaxDelay time.Duration `env:"MAX_DELAY" envDefault:"10s"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

// ToRetryOptions returns plain exponential backoff options.
func (rc *RetryConfig) ToRetryOptions() []retry.Option {
	return []retry.Option{
		retry.Attempts(rc.Attempts),
		retry.Delay(rc.Delay),
		retry.MaxDelay(rc.MaxDelay),
		retry.LastErrorOnly(true),
	}
}

// ToProviderOptions returns options for calls to a hosted model provider:
// only retryable errors are repeated, and the wait depends on the failure
// kind (see ProviderDelay).
func (rc *RetryConfig) ToProviderOptions() []retry.Option {
	return []retry.Option{
		retry.Attempts(rc.Attempts),
		retry.MaxDelay(rc.MaxDelay),
		retry.DelayType(ProviderDelay(rc.Delay)),
		retry.RetryIf(pkghttp.IsRetryable),
		retry.LastErrorOnly(true),
	}
}

// ProviderDelay waits, for the n-th failed attempt (0-based) and a unit u:
// rate limited (2^n+1)u, or the Retry-After hint if larger; timed out (3+n)u;
// anything else (1+n)u.
func ProviderDelay(unit time.Duration) retry.DelayTypeFunc {
	return func(n uint, err error, _ *retry.Config) time.Duration {
		switch {
		case pkghttp.IsRateLimited(err):
			d := time.Duration(math.Pow(2, float64(n))+1) * unit
			if hint := pkghttp.RetryAfterOf(err); hint > d {
				return hint
			}
			return d
		case pkghttp.IsTimeout(err):
			return time.Duration(3+n) * unit
		default:
			return time.Duration(1+n) * unit
		}
	}
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		Attempts: defaultAttempts,
		Delay:    defaultDelay,
		MaxDelay: defaultMaxDelay,
	}
}
