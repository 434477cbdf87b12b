package retry

import "github.com/fathom-run/fathom/internal/clock"

// Policy is the LLM streaming client's retry policy: exact constants and
// delay formula ported from fathom-server's conservative retry policy.
type Policy struct {
	MaxRetries  int
	BaseDelayMs int64
	MaxDelayMs  int64
	JitterMs    int64
}

// ConservativePolicy is the default policy used by internal/llmclient.
func ConservativePolicy() Policy {
	return Policy{
		MaxRetries:  2,
		BaseDelayMs: 400,
		MaxDelayMs:  4000,
		JitterMs:    300,
	}
}

// ComputeDelayMs returns the delay before the given retry attempt
// (0-based: the delay before the first retry after attempt 0 failed).
// If retryAfterMs is non-nil it is used verbatim, matching the
// Retry-After-header override in the original client. Otherwise the delay
// is exponential with a deterministic jitter term derived from the clock,
// not a random draw, so retries stay reproducible in tests.
func (p Policy) ComputeDelayMs(attempt int, retryAfterMs *int64, c clock.Clock) int64 {
	if retryAfterMs != nil {
		return *retryAfterMs
	}

	delay := p.BaseDelayMs << attempt
	if delay > p.MaxDelayMs {
		delay = p.MaxDelayMs
	}

	jitter := int64(0)
	if p.JitterMs > 0 {
		jitter = c.NowMs() % p.JitterMs
	}
	return delay + jitter
}
