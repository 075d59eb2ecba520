// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retry implements the fixed/linear/exponential-with-cap backoff
// policy shared by the tool execution coordinator and the agent loop's own
// LLM call retries.
package retry

import (
	"context"
	"time"
)

// BackoffStrategy selects how retry delay grows between attempts.
type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryConfig controls the tool/LLM retry loop. Exponential with these
// defaults (100ms initial, 2x multiplier, 5s cap, 3 attempts) matches what
// the coordinator uses when a caller doesn't override it.
type RetryConfig struct {
	Strategy    BackoffStrategy
	Initial     time.Duration
	Multiplier  float64
	Max         time.Duration
	MaxRetries  int
}

// DefaultRetryConfig returns the exponential-with-cap policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Strategy:   BackoffExponential,
		Initial:    100 * time.Millisecond,
		Multiplier: 2.0,
		Max:        5 * time.Second,
		MaxRetries: 3,
	}
}

// Delay computes the backoff delay before retry attempt n (1-based: the
// delay preceding the first retry is Delay(1)).
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	switch c.Strategy {
	case BackoffFixed:
		return capDelay(c.Initial, c.Max)
	case BackoffLinear:
		d := c.Initial * time.Duration(attempt)
		return capDelay(d, c.Max)
	default: // BackoffExponential
		d := float64(c.Initial)
		for i := 1; i < attempt; i++ {
			d *= c.Multiplier
		}
		return capDelay(time.Duration(d), c.Max)
	}
}

func capDelay(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

// Retryable classifies an error as retryable (transient I/O) versus
// non-retryable (validation, permission, not-found). Callers that already
// know the classification (e.g. from a tool's structured error) should
// bypass this and use the known classification directly.
type Retryable func(err error) bool

// WithRetry runs fn, retrying on retryable errors per cfg's backoff policy
// up to cfg.MaxRetries times. It respects ctx cancellation between
// attempts. onRetry, if non-nil, is invoked before each sleep with the
// attempt number (1-based) and the error that triggered it.
func WithRetry(ctx context.Context, cfg RetryConfig, isRetryable Retryable, onRetry func(attempt int, err error), fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := cfg.Delay(attempt)
			if onRetry != nil {
				onRetry(attempt, lastErr)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if isRetryable != nil && !isRetryable(err) {
			return err
		}
	}
	return lastErr
}
