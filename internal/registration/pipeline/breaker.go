package pipeline

// failureBreaker decides when a sink has become unusable. After threshold
// consecutive submit failures the run stops instead of hammering a dead
// broker for every remaining row. A run is sequential, so no locking.
type failureBreaker struct {
	threshold int
	failures  int
}

func newFailureBreaker(threshold int) *failureBreaker {
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}
	return &failureBreaker{threshold: threshold}
}

// RecordFailure counts a failure and reports whether the breaker tripped.
func (b *failureBreaker) RecordFailure() bool {
	b.failures++
	return b.failures >= b.threshold
}

// RecordSuccess resets the consecutive failure count.
func (b *failureBreaker) RecordSuccess() {
	b.failures = 0
}

// Failures returns the current consecutive failure count.
func (b *failureBreaker) Failures() int {
	return b.failures
}
