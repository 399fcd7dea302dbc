package spinor

import (
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// Status poll interval bounds.
const (
	pollIntervalMin = 10 * time.Microsecond
	pollIntervalMax = time.Millisecond
)

func newPollBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    pollIntervalMin,
		Max:    pollIntervalMax,
		Factor: 2,
	}
}

// WaitIdle polls RDSR (05h) until the write in progress bit clears. Before
// each read it waits for the host to be idle, out of the same budget. The
// chip is always checked once more at the deadline, and no sleep extends
// past it.
func (Generic) WaitIdle(c *Chip, timeout time.Duration) error {
	if c.Host == nil {
		return ErrNotInitialized
	}
	clk := c.clk()
	deadline := clk.Now().Add(timeout)
	b := newPollBackoff()

	for {
		if err := WaitHostIdle(c, deadline); err != nil {
			return err
		}
		sr, err := ReadStatus(c)
		if err != nil {
			return err
		}
		c.Metrics.poll()
		if !sr.Busy() {
			return nil
		}

		remaining := deadline.Sub(clk.Now())
		if remaining <= 0 {
			c.logger().Debug("wait idle timed out", zap.Duration("timeout", timeout), zap.Stringer("status", sr))
			return ErrTimeout
		}
		clk.Sleep(min(b.Duration(), remaining))
	}
}

// WaitHostIdle blocks until the host state machine is idle or deadline
// passes.
func WaitHostIdle(c *Chip, deadline time.Time) error {
	clk := c.clk()
	b := newPollBackoff()
	for !c.Host.HostIdle() {
		remaining := deadline.Sub(clk.Now())
		if remaining <= 0 {
			c.logger().Debug("host did not become idle")
			return ErrTimeout
		}
		clk.Sleep(min(b.Duration(), remaining))
	}
	return nil
}
