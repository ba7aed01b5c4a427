package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var checkpointParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Checkpoint is a fixed daily clock time ("08:45:00") in a market timezone
type Checkpoint struct {
	clock    string
	location *time.Location
	schedule cron.Schedule
}

// ParseCheckpoint builds a daily checkpoint from an "HH:MM:SS" clock value
func ParseCheckpoint(clock string, loc *time.Location) (*Checkpoint, error) {
	t, err := time.Parse("15:04:05", clock)
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoint %q: %w", clock, err)
	}

	if loc == nil {
		loc = time.UTC
	}

	spec := fmt.Sprintf("CRON_TZ=%s %d %d %d * * *", loc.String(), t.Second(), t.Minute(), t.Hour())
	schedule, err := checkpointParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint schedule: %w", err)
	}

	return &Checkpoint{clock: clock, location: loc, schedule: schedule}, nil
}

// String returns the clock value
func (c *Checkpoint) String() string {
	return c.clock
}

// Today returns the checkpoint instant on now's calendar day in the market timezone
func (c *Checkpoint) Today(now time.Time) time.Time {
	local := now.In(c.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.location)
	return c.schedule.Next(midnight.Add(-time.Second))
}

// Next returns the first checkpoint instant strictly after now
func (c *Checkpoint) Next(now time.Time) time.Time {
	return c.schedule.Next(now)
}

// Until returns how long until today's checkpoint, or 0 when it already passed
func (c *Checkpoint) Until(now time.Time) time.Duration {
	d := c.Today(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// WaitUntil blocks until today's checkpoint. Returns immediately once it has passed.
func WaitUntil(ctx context.Context, clk Clock, cp *Checkpoint) error {
	d := cp.Until(clk.Now())
	if d <= 0 {
		return ctx.Err()
	}
	return clk.Sleep(ctx, d)
}

// TradingDate formats now as the YYYYMMDD market date
func TradingDate(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format("20060102")
}
