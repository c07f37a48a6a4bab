package clock

import (
	"fmt"
	"time"
)

// Calendar resolves "today" and wall-clock deadlines in the single scheduling timezone.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar loads the named zone. An empty name means UTC.
func NewCalendar(timezone string) (*Calendar, error) {
	loc := time.UTC
	if timezone != "" {
		loaded, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
		loc = loaded
	}
	return &Calendar{loc: loc, now: time.Now}, nil
}

// NewFixedCalendar returns a calendar whose clock always reads now. Intended for tests and one-off runs.
func NewFixedCalendar(loc *time.Location, now time.Time) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc, now: func() time.Time { return now }}
}

// Location returns the scheduling timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Now returns the current instant in the scheduling timezone.
func (c *Calendar) Now() time.Time { return c.now().In(c.loc) }

// Today returns the current civil date in the scheduling timezone.
func (c *Calendar) Today() Date { return DateOf(c.now(), c.loc) }

// DateOf converts an instant to its civil date in the scheduling timezone.
func (c *Calendar) DateOf(t time.Time) Date { return DateOf(t, c.loc) }

// NextRunAt returns the next instant strictly after now at which the local clock reads hour:00.
func (c *Calendar) NextRunAt(hour int) time.Time {
	now := c.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, c.loc)
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, 0, 0, 0, c.loc)
	}
	return next
}
