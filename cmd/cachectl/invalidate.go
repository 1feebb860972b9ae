package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/coinpulse/coinpulse/invalidation"

	"github.com/urfave/cli/v2"
)

var eventFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "type",
		Usage:    "event type (price_update, sentiment_update, portfolio_update, user_update)",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "coin",
		Usage: "coin slug the event concerns",
	},
	&cli.Int64Flag{
		Name:  "user",
		Usage: "user ID the event concerns",
	},
	&cli.Int64Flag{
		Name:  "portfolio",
		Usage: "portfolio ID the event concerns",
	},
}

func eventFromFlags(cctx *cli.Context) (*invalidation.Event, error) {
	ev := &invalidation.Event{
		Type:        invalidation.EventType(cctx.String("type")),
		CoinID:      cctx.String("coin"),
		UserID:      cctx.Int64("user"),
		PortfolioID: cctx.Int64("portfolio"),
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

var cmdInvalidate = &cli.Command{
	Name:  "invalidate",
	Usage: "sub-commands for purging cache entries",
	Subcommands: []*cli.Command{
		&cli.Command{
			Name:      "key",
			Usage:     "purge a single exact key",
			ArgsUsage: `<key>`,
			Flags:     adminFlags,
			Action:    runInvalidateKey,
		},
		&cli.Command{
			Name:      "pattern",
			Usage:     "purge every key matching a glob pattern",
			ArgsUsage: `<pattern>`,
			Flags:     adminFlags,
			Action:    runInvalidatePattern,
		},
		&cli.Command{
			Name:      "coin",
			Usage:     "purge everything cached for a coin",
			ArgsUsage: `<coin-id>`,
			Flags:     adminFlags,
			Action:    runInvalidateCoin,
		},
		&cli.Command{
			Name:      "user",
			Usage:     "purge everything cached for a user",
			ArgsUsage: `<user-id>`,
			Flags:     adminFlags,
			Action:    runInvalidateUser,
		},
		&cli.Command{
			Name:   "event",
			Usage:  "dispatch a change event through the daemon",
			Flags:  append(eventFlags, adminFlags...),
			Action: runInvalidateEvent,
		},
	},
}

func runInvalidateKey(cctx *cli.Context) error {
	ctx := context.Background()
	key := cctx.Args().First()
	if key == "" {
		return fmt.Errorf("need to provide a cache key as an argument")
	}

	ac := newAdminClient(cctx)
	var resp struct {
		Existed bool `json:"existed"`
	}
	err := ac.postJSON(ctx, "/admin/invalidate/key", map[string]string{"key": key}, &resp)
	if err != nil {
		return err
	}
	if resp.Existed {
		fmt.Printf("%s\tpurged\n", key)
	} else {
		fmt.Printf("%s\tnot present\n", key)
	}
	return nil
}

func runInvalidatePattern(cctx *cli.Context) error {
	ctx := context.Background()
	pattern := cctx.Args().First()
	if pattern == "" {
		return fmt.Errorf("need to provide a key pattern as an argument")
	}

	ac := newAdminClient(cctx)
	var resp struct {
		Invalidated int64 `json:"invalidated"`
	}
	err := ac.postJSON(ctx, "/admin/invalidate/pattern", map[string]string{"pattern": pattern}, &resp)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d keys matching %s\n", resp.Invalidated, pattern)
	return nil
}

func runInvalidateCoin(cctx *cli.Context) error {
	ctx := context.Background()
	coinID := cctx.Args().First()
	if coinID == "" {
		return fmt.Errorf("need to provide a coin slug as an argument")
	}

	ac := newAdminClient(cctx)
	var resp struct {
		Invalidated int64 `json:"invalidated"`
	}
	err := ac.postJSON(ctx, "/admin/invalidate/coin/"+coinID, nil, &resp)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d keys for coin %s\n", resp.Invalidated, coinID)
	return nil
}

func runInvalidateUser(cctx *cli.Context) error {
	ctx := context.Background()
	raw := cctx.Args().First()
	if raw == "" {
		return fmt.Errorf("need to provide a user ID as an argument")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", raw, err)
	}

	ac := newAdminClient(cctx)
	var resp struct {
		Invalidated int64 `json:"invalidated"`
	}
	err = ac.postJSON(ctx, fmt.Sprintf("/admin/invalidate/user/%d", userID), nil, &resp)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d keys for user %d\n", resp.Invalidated, userID)
	return nil
}

func runInvalidateEvent(cctx *cli.Context) error {
	ctx := context.Background()
	ev, err := eventFromFlags(cctx)
	if err != nil {
		return err
	}

	ac := newAdminClient(cctx)
	var resp struct {
		Invalidated int64 `json:"invalidated"`
	}
	if err := ac.postJSON(ctx, "/admin/invalidate/event", ev, &resp); err != nil {
		return err
	}
	fmt.Printf("%s event purged %d keys\n", ev.Type, resp.Invalidated)
	return nil
}
