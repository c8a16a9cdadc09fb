// Package capacity tracks paired total/used counters (beds, book copies, seats)
// and the lifecycle of the allocations consuming them.
package capacity

import (
	"github.com/paridhisingla/unisync/core"
)

// Counter is a (total, used) pair. 0 <= Used <= Total holds for every counter produced by this package.
type Counter struct {
	Resource string `json:"-"`
	Total    int    `json:"total"`
	Used     int    `json:"used"`
}

// NewCounter returns a validated Counter.
func NewCounter(resource string, total, used int) (Counter, error) {
	c := Counter{Resource: resource, Total: total, Used: used}
	if total < 0 {
		return c, core.NewValidationError(nil, core.FieldError{Field: "total", Error: "total cannot be negative"})
	}
	if used < 0 || used > total {
		return c, core.NewInvalidStateError(resource, "used count out of range")
	}
	return c, nil
}

// Available returns the remaining capacity, never negative.
func (c Counter) Available() int {
	if avail := c.Total - c.Used; avail > 0 {
		return avail
	}
	return 0
}

func (c Counter) IsFull() bool { return c.Used >= c.Total }

// Acquire takes one unit. The counter is left unchanged on error.
func (c *Counter) Acquire() error {
	if c.Used >= c.Total {
		return core.NewCapacityExceededError(c.Resource, c.Total)
	}
	c.Used++
	return nil
}

// Release gives one unit back. The counter is left unchanged on error.
func (c *Counter) Release() error {
	if c.Used <= 0 {
		return core.NewInvalidStateError(c.Resource, "nothing to release")
	}
	c.Used--
	return nil
}

// Resize changes the total capacity. It cannot drop below what is currently used.
func (c *Counter) Resize(total int) error {
	if total < 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "total", Error: "total cannot be negative"})
	}
	if total < c.Used {
		return core.NewCapacityExceededError(c.Resource, total)
	}
	c.Total = total
	return nil
}

// AcquireError explains why an atomic acquire on c affected no rows.
// c must be a fresh read of the counter.
func (c Counter) AcquireError() error {
	tmp := c
	if err := tmp.Acquire(); err != nil {
		return err
	}
	return core.NewInvalidStateError(c.Resource, "concurrent update, try again")
}

// ReleaseError explains why an atomic release on c affected no rows.
func (c Counter) ReleaseError() error {
	tmp := c
	if err := tmp.Release(); err != nil {
		return err
	}
	return core.NewInvalidStateError(c.Resource, "concurrent update, try again")
}
