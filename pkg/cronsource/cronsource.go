package cronsource

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/streamflow/pkg/streams"
)

// Config holds configuration for a cron tick source.
type Config struct {
	// Expression is the cron expression driving ticks. Six-field format
	// with seconds, plus descriptors such as "@hourly" and "@every 5s".
	Expression string

	// Location is the timezone the expression is evaluated in.
	// Default: time.Local
	Location *time.Location

	// MaxTicks closes the stream after this many ticks. Zero means the
	// stream ticks until canceled.
	MaxTicks int
}

// New returns a stream source that enqueues one time.Time chunk per
// schedule firing. The chunk carries the scheduled instant, not the
// delivery instant.
func New(config Config) (streams.Source[time.Time], error) {
	if config.Expression == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	if config.MaxTicks < 0 {
		return nil, fmt.Errorf("max ticks must not be negative")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(config.Expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression '%s': %w", config.Expression, err)
	}

	location := config.Location
	if location == nil {
		location = time.Local
	}

	return &tickSource{
		schedule: schedule,
		location: location,
		maxTicks: config.MaxTicks,
		stop:     make(chan struct{}),
	}, nil
}

// tickSource implements streams.Source by sleeping until the next
// schedule firing. The engine never runs two pulls at once, so ticks
// needs no lock; stop wakes a sleeping pull when the stream is canceled.
type tickSource struct {
	schedule cron.Schedule
	location *time.Location
	maxTicks int

	ticks    int
	stopOnce sync.Once
	stop     chan struct{}
}

// Start implements streams.Source.
func (s *tickSource) Start(*streams.DefaultController[time.Time]) error { return nil }

// Pull implements streams.Source.
func (s *tickSource) Pull(ctrl *streams.DefaultController[time.Time]) error {
	if s.maxTicks > 0 && s.ticks >= s.maxTicks {
		return ctrl.Close()
	}

	now := time.Now().In(s.location)
	next := s.schedule.Next(now)
	if next.IsZero() {
		// The schedule has no future firing.
		return ctrl.Close()
	}

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	select {
	case <-timer.C:
		s.ticks++
		return ctrl.Enqueue(next)
	case <-s.stop:
		return nil
	}
}

// Cancel implements streams.Source.
func (s *tickSource) Cancel(error) error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
