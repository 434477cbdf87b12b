package retry

import "testing"

type fixedClock struct{ ms int64 }

func (f fixedClock) NowMs() int64 { return f.ms }

func TestComputeDelayMsExponentialWithCap(t *testing.T) {
	p := ConservativePolicy()
	c := fixedClock{ms: 1000}

	if got := p.ComputeDelayMs(0, nil, c); got != 400+1000%300 {
		t.Fatalf("attempt 0: expected %d, got %d", 400+1000%300, got)
	}
	if got := p.ComputeDelayMs(1, nil, c); got != 800+1000%300 {
		t.Fatalf("attempt 1: expected %d, got %d", 800+1000%300, got)
	}
	// 400*2^3 = 3200, still under the 4000 cap.
	if got := p.ComputeDelayMs(3, nil, c); got != 3200+1000%300 {
		t.Fatalf("attempt 3: expected %d, got %d", 3200+1000%300, got)
	}
	// 400*2^5 = 12800, capped at 4000.
	if got := p.ComputeDelayMs(5, nil, c); got != 4000+1000%300 {
		t.Fatalf("attempt 5: expected %d, got %d", 4000+1000%300, got)
	}
}

func TestComputeDelayMsRetryAfterOverridesFormula(t *testing.T) {
	p := ConservativePolicy()
	retryAfter := int64(9000)
	if got := p.ComputeDelayMs(0, &retryAfter, fixedClock{ms: 1000}); got != 9000 {
		t.Fatalf("expected retry_after to be used verbatim, got %d", got)
	}
}
