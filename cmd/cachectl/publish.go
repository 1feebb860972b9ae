package main

import (
	"context"
	"fmt"

	"github.com/coinpulse/coinpulse/invalidation"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

var cmdPublish = &cli.Command{
	Name:  "publish",
	Usage: "publish a change event on the invalidation channel",
	Flags: append(eventFlags,
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL: redis://<user>:<pass>@<hostname>:6379/<db>",
			Value:   "redis://localhost:6379/0",
			EnvVars: []string{"FURNACE_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "channel",
			Usage:   "pub/sub channel to publish on",
			Value:   invalidation.DefaultChannel,
			EnvVars: []string{"FURNACE_INVALIDATION_CHANNEL"},
		},
	),
	Action: runPublish,
}

// runPublish bypasses the admin API and publishes straight to redis, the
// same path the platform services use. Every subscribed daemon instance
// will process the event.
func runPublish(cctx *cli.Context) error {
	ctx := context.Background()
	ev, err := eventFromFlags(cctx)
	if err != nil {
		return err
	}

	opt, err := redis.ParseURL(cctx.String("redis-url"))
	if err != nil {
		return err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("could not connect to redis: %w", err)
	}
	defer rdb.Close()

	channel := cctx.String("channel")
	if err := invalidation.Publish(ctx, rdb, channel, ev); err != nil {
		return err
	}
	fmt.Printf("published %s event on %s\n", ev.Type, channel)
	return nil
}
