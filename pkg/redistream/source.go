package redistream

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/streamflow/pkg/streams"
)

// ListSource returns a byte stream source that pops chunks off the head
// of the configured Redis list. An empty list is treated as "no data
// yet"; the source never closes the stream on its own.
func ListSource(config Config) (streams.ByteSource, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return &listSource{config: applyConfigDefaults(config)}, nil
}

type listSource struct {
	config Config
}

// Start implements streams.ByteSource. Connectivity is verified up
// front so a dead Redis errors the stream at construction rather than
// on the first read.
func (s *listSource) Start(*streams.ByteStreamController) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.OpTimeout)
	defer cancel()

	if err := s.config.Client.Ping(ctx).Err(); err != nil {
		return &RedisError{"ping", err}
	}
	return nil
}

// Pull implements streams.ByteSource. Each pull issues one blocking pop
// bounded by BlockTimeout; a timeout enqueues nothing, and the engine
// pulls again while reader demand persists.
func (s *listSource) Pull(ctrl *streams.ByteStreamController) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.BlockTimeout+s.config.OpTimeout)
	defer cancel()

	res, err := s.config.Client.BLPop(ctx, s.config.BlockTimeout, s.config.Key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return &RedisError{"blpop", err}
	}
	// BLPop yields [key, value].
	return ctrl.Enqueue([]byte(res[1]))
}

// Cancel implements streams.ByteSource. The injected client stays open.
func (s *listSource) Cancel(error) error { return nil }
