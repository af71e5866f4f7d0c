package tasks

import (
	"context"
	"fmt"
	"time"
)

// maxResourceUnits bounds the server-supplied requirement so the delay
// multiplication cannot overflow.
const maxResourceUnits = 1024

// DelayProcessor stands in for real payload execution with a bounded
// delay scaled by the task's resource requirement.
type DelayProcessor struct {
	UnitDelay time.Duration
	MaxDelay  time.Duration
}

func (p DelayProcessor) Process(ctx context.Context, task Task) (string, error) {
	d := p.UnitDelay
	if d <= 0 {
		d = time.Second
	}
	if n := task.ResourceRequirement; n > 1 {
		if n > maxResourceUnits {
			n = maxResourceUnits
		}
		d *= time.Duration(n)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}
	return fmt.Sprintf(`{"taskId":%q,"durationMs":%d}`, task.ID, d.Milliseconds()), nil
}
