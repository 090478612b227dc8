package redistream

import (
	"context"

	"github.com/vnykmshr/streamflow/pkg/streams"
)

// ListSink returns a stream sink that pushes every chunk onto the tail
// of the configured Redis list.
func ListSink(config Config) (streams.Sink[[]byte], error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return &listSink{config: applyConfigDefaults(config)}, nil
}

type listSink struct {
	config Config
}

// Start implements streams.Sink.
func (s *listSink) Start(*streams.WritableController[[]byte]) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.OpTimeout)
	defer cancel()

	if err := s.config.Client.Ping(ctx).Err(); err != nil {
		return &RedisError{"ping", err}
	}
	return nil
}

// Write implements streams.Sink. Push, trim and expiry run in one
// pipeline round trip.
func (s *listSink) Write(chunk []byte, _ *streams.WritableController[[]byte]) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.OpTimeout)
	defer cancel()

	pipe := s.config.Client.Pipeline()
	pipe.RPush(ctx, s.config.Key, chunk)
	if s.config.MaxLen > 0 {
		pipe.LTrim(ctx, s.config.Key, -s.config.MaxLen, -1)
	}
	if s.config.KeyTTL > 0 {
		pipe.Expire(ctx, s.config.Key, s.config.KeyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return &RedisError{"rpush", err}
	}
	return nil
}

// Close implements streams.Sink. Chunks already pushed stay in the list
// for consumers.
func (s *listSink) Close() error { return nil }

// Abort implements streams.Sink. Delivered chunks are not clawed back.
func (s *listSink) Abort(error) error { return nil }
