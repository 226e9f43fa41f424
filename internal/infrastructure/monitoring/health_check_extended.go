package monitoring

import (
	"context"
	"fmt"
	"time"
)

// Pinger is satisfied by the relay bridge and by *redis.Client wrappers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AddPingCheck fails while p cannot be reached.
func (h *HealthChecker) AddPingCheck(name string, p Pinger, timeout time.Duration) {
	h.AddCheck(name, func(ctx context.Context) (bool, error) {
		if err := p.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddFrameFreshnessCheck fails when no frame was captured within staleAfter.
// latest reports the capture time of the newest frame and whether one exists.
func (h *HealthChecker) AddFrameFreshnessCheck(latest func() (time.Time, bool), staleAfter time.Duration) {
	h.AddCheck("frames", func(ctx context.Context) (bool, error) {
		at, ok := latest()
		if !ok {
			return false, fmt.Errorf("no frame captured yet")
		}
		if age := time.Since(at); age > staleAfter {
			return false, fmt.Errorf("last frame is %s old", age.Round(time.Millisecond))
		}
		return true, nil
	}, 0)
}
