package cronsource_test

import (
	"context"
	"fmt"
	"time"

	"github.com/vnykmshr/streamflow/pkg/cronsource"
	"github.com/vnykmshr/streamflow/pkg/streams"
)

// Example demonstrates a stream that ticks on a cron schedule.
func Example() {
	ctx := context.Background()

	src, err := cronsource.New(cronsource.Config{
		Expression: "@every 10ms",
		MaxTicks:   2,
	})
	if err != nil {
		panic(err)
	}

	s := streams.NewReadable[time.Time](src)
	r, err := s.GetReader()
	if err != nil {
		panic(err)
	}

	ticks := 0
	for {
		_, done, err := r.Read(ctx)
		if err != nil {
			panic(err)
		}
		if done {
			break
		}
		ticks++
	}
	fmt.Println("ticks:", ticks)

	// Output: ticks: 2
}
