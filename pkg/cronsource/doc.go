// Package cronsource emits stream chunks on a cron schedule.
//
// Each firing of the schedule enqueues one time.Time chunk carrying the
// scheduled instant. Combined with a transform or pipe, this turns any
// periodic job into a stream pipeline with backpressure: when the consumer
// falls behind, ticks are delayed rather than piled up.
//
// # Quick Start
//
//	src, err := cronsource.New(cronsource.Config{
//		Expression: "@every 30s",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	s := streams.NewReadable[time.Time](src)
//
//	r, _ := s.GetReader()
//	for {
//		tick, done, err := r.Read(ctx)
//		if err != nil || done {
//			break
//		}
//		runJob(tick)
//	}
//
// # Expressions
//
// Six-field cron expressions (with seconds) and descriptors are accepted:
//
//	"*/5 * * * * *"   - every 5 seconds
//	"0 30 14 * * 1-5" - 2:30 PM on weekdays
//	"@hourly"         - every hour
//	"@every 1m30s"    - fixed 90 second interval
//
// # Pacing
//
// The source sleeps until the next firing only while the stream wants
// data. A slow consumer therefore skips firings instead of accumulating a
// backlog of stale ticks. Canceling the stream wakes any sleeping pull
// immediately.
package cronsource
