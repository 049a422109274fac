package pacing

import "time"

// TimeProvider is an interface for reading the monotonic clock and sleeping.
// This allows injecting a mock time provider for deterministic testing.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time
	// Sleep blocks the caller for the given duration.
	Sleep(d time.Duration)
}

// RealTimeProvider implements TimeProvider using the actual system time.
type RealTimeProvider struct{}

// Now returns the current system time.
func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// Sleep pauses the calling goroutine.
func (RealTimeProvider) Sleep(d time.Duration) {
	time.Sleep(d)
}

// getTimeProvider returns the provided TimeProvider if non-nil,
// otherwise returns RealTimeProvider.
func getTimeProvider(tp TimeProvider) TimeProvider {
	if tp != nil {
		return tp
	}
	return RealTimeProvider{}
}
