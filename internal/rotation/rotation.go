// Package rotation owns the provider-rotation and pacing state for one
// dispatch run, separate from the orchestrator loop so the trigger rules are
// independently testable.
package rotation

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

// Controller decides, for each unit of work, whether to rotate to the next
// provider and whether to pause before the next send. All counters are
// scoped to a single run.
type Controller struct {
	providerCount int
	rotateAfterN  int
	delay         time.Duration
	delayEveryN   int
	limiter       *rate.Limiter

	providerIndex     int
	sentSinceRotation int
	sentSinceDelay    int

	// Injected for tests; defaults to a ctx-aware timer sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewController(providerCount int, policy domain.DispatchPolicy) *Controller {
	c := &Controller{
		providerCount: providerCount,
		rotateAfterN:  policy.RotateAfterN,
		delay:         time.Duration(policy.DelaySeconds) * time.Second,
		delayEveryN:   policy.DelayEveryN,
		sleep:         sleepCtx,
	}
	if policy.RatePerSecond > 0 {
		// burst == rate: no saved-up burst beyond the configured maximum.
		c.limiter = rate.NewLimiter(rate.Limit(policy.RatePerSecond), policy.RatePerSecond)
	}
	return c
}

// ProviderIndex is the index of the provider the next unit should use.
func (c *Controller) ProviderIndex() int { return c.providerIndex }

// BeforeUnit is evaluated before each unit of work. It reports whether the
// engine must close the current connection and open one to the (already
// advanced) next provider. It also blocks until the optional throughput cap
// grants a slot.
func (c *Controller) BeforeUnit(ctx context.Context) (rotate bool, err error) {
	if c.rotateAfterN > 0 && c.sentSinceRotation >= c.rotateAfterN {
		c.providerIndex = (c.providerIndex + 1) % c.providerCount
		c.sentSinceRotation = 0
		rotate = true
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return rotate, err
		}
	}
	return rotate, nil
}

// AfterUnit increments the pacing counters and applies the configured delay:
// unconditionally when DelayEveryN is zero, otherwise after every Nth unit.
func (c *Controller) AfterUnit(ctx context.Context) error {
	c.sentSinceRotation++
	c.sentSinceDelay++

	if c.delay <= 0 {
		return nil
	}
	if c.delayEveryN == 0 || c.sentSinceDelay%c.delayEveryN == 0 {
		return c.sleep(ctx, c.delay)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
