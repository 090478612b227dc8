package cronsource

import (
	"testing"
	"time"

	"github.com/vnykmshr/streamflow/internal/testutil"
	"github.com/vnykmshr/streamflow/pkg/streams"
)

func TestTicksArriveInScheduleOrder(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	src, err := New(Config{Expression: "@every 10ms", MaxTicks: 3})
	testutil.AssertNoError(t, err)
	s := streams.NewReadable[time.Time](src)
	r, err := s.GetReader()
	testutil.AssertNoError(t, err)

	var ticks []time.Time
	for {
		v, done, err := r.Read(ctx)
		testutil.AssertNoError(t, err)
		if done {
			break
		}
		ticks = append(ticks, v)
	}

	testutil.AssertEqual(t, len(ticks), 3)
	for i := 1; i < len(ticks); i++ {
		testutil.AssertEqual(t, ticks[i-1].Before(ticks[i]), true)
	}
	testutil.AssertEqual(t, s.State(), streams.ReadableStateClosed)
}

func TestMaxTicksClosesStream(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	src, err := New(Config{Expression: "@every 5ms", MaxTicks: 1})
	testutil.AssertNoError(t, err)
	s := streams.NewReadable[time.Time](src)
	r, err := s.GetReader()
	testutil.AssertNoError(t, err)

	_, done, err := r.Read(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, done, false)

	_, done, err = r.Read(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, done, true)
}

func TestInvalidConfigRejected(t *testing.T) {
	_, err := New(Config{})
	testutil.AssertError(t, err)

	_, err = New(Config{Expression: "not a cron line"})
	testutil.AssertError(t, err)

	_, err = New(Config{Expression: "@every 1s", MaxTicks: -1})
	testutil.AssertError(t, err)
}

func TestCancelWakesSleepingPull(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	// A distant firing leaves the pull asleep until cancel.
	src, err := New(Config{Expression: "@every 1h"})
	testutil.AssertNoError(t, err)
	s := streams.NewReadable[time.Time](src)
	r, err := s.GetReader()
	testutil.AssertNoError(t, err)

	type outcome struct {
		done bool
		err  error
	}
	res := make(chan outcome, 1)
	go func() {
		_, done, err := r.Read(ctx)
		res <- outcome{done, err}
	}()

	testutil.AssertNoError(t, r.Cancel(ctx, nil))
	got := <-res
	testutil.AssertNoError(t, got.err)
	testutil.AssertEqual(t, got.done, true)
}

func TestTicksCarryConfiguredLocation(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	src, err := New(Config{Expression: "@every 5ms", Location: time.UTC, MaxTicks: 1})
	testutil.AssertNoError(t, err)
	s := streams.NewReadable[time.Time](src)
	r, err := s.GetReader()
	testutil.AssertNoError(t, err)

	v, _, err := r.Read(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v.Location().String(), "UTC")

	_, done, err := r.Read(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, done, true)
}
