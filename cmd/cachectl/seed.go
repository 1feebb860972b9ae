package main

import (
	"fmt"

	"github.com/coinpulse/coinpulse/fakedata"
	"github.com/coinpulse/coinpulse/util/cliutil"

	"github.com/urfave/cli/v2"
)

var cmdSeed = &cli.Command{
	Name:  "seed",
	Usage: "fill a database with synthetic market data for local development",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/furnace/coinpulse.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "deterministic generator seed",
			Value: 1,
		},
		&cli.IntFlag{
			Name:  "coins",
			Usage: "total number of coins to seed, well-known ones included",
			Value: 10,
		},
		&cli.IntFlag{
			Name:  "users",
			Usage: "number of users with portfolios",
			Value: 25,
		},
		&cli.IntFlag{
			Name:  "price-points",
			Usage: "price history rows per coin",
			Value: 288,
		},
	},
	Action: runSeed,
}

func runSeed(cctx *cli.Context) error {
	db, err := cliutil.SetupDatabase(cctx.String("database-url"), 10)
	if err != nil {
		return err
	}

	opts := fakedata.Opts{
		Seed:        cctx.Int64("seed"),
		Coins:       cctx.Int("coins"),
		Users:       cctx.Int("users"),
		PricePoints: cctx.Int("price-points"),
	}
	if err := fakedata.Seed(db, opts); err != nil {
		return err
	}
	fmt.Println("database seeded")
	return nil
}
