// Package retry holds the bounded exponential retry policy shared by the
// classifier call, report submission and alert delivery.
//
// A policy allows one initial attempt plus MaxRetries retries. The delay
// before retry n (n starting at 1) is
//
//	unit * base^n + jitter,  jitter uniformly drawn from [0, unit)
//
// and no delay follows the final attempt.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff"
)

// Policy configures a bounded retry loop.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// Base is the exponential base.
	Base float64 `mapstructure:"backoff_base" yaml:"backoff_base"`

	// Unit scales the exponential term and bounds the jitter.
	Unit time.Duration `mapstructure:"backoff_unit" yaml:"backoff_unit"`

	// MaxDelay caps a single delay before jitter. Zero means uncapped.
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// DefaultPolicy returns 3 retries delayed 2s, 4s and 8s (plus jitter).
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		Base:       2,
		Unit:       time.Second,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Base < 1 {
		p.Base = 1
	}
	if p.Unit < 0 {
		p.Unit = 0
	}
	return p
}

// Delay is the delay before retry n without jitter.
func (p Policy) Delay(n int) time.Duration {
	p = p.normalized()
	d := time.Duration(float64(p.Unit) * math.Pow(p.Base, float64(n)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// NewBackOff returns a backoff.BackOff that yields the policy's delays and
// stops once MaxRetries retries have been handed out.
func (p Policy) NewBackOff() backoff.BackOff {
	return &policyBackOff{policy: p.normalized(), jitter: uniformJitter}
}

type policyBackOff struct {
	policy  Policy
	retries int
	jitter  func(unit time.Duration) time.Duration
}

func (b *policyBackOff) NextBackOff() time.Duration {
	if b.retries >= b.policy.MaxRetries {
		return backoff.Stop
	}
	b.retries++
	return b.policy.Delay(b.retries) + b.jitter(b.policy.Unit)
}

func (b *policyBackOff) Reset() { b.retries = 0 }

func uniformJitter(unit time.Duration) time.Duration {
	if unit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(unit)))
}

// Notify is called after a failed attempt that will be retried.
type Notify func(attempt int, err error, next time.Duration)

// Do runs op until it succeeds, returns a Permanent error, the policy is
// exhausted or ctx is done. It returns the number of attempts made and the
// last error.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, notify Notify) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	attempts := 0
	operation := func() error {
		attempts++
		return op(ctx)
	}
	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, next time.Duration) {
			notify(attempts, err, next)
		}
	}
	err := backoff.RetryNotify(operation, backoff.WithContext(p.NewBackOff(), ctx), onRetry)
	return attempts, err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
