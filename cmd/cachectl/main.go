package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(-1)
	}
}

var adminFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "furnace-host",
		Usage:   "method, hostname, and port of the furnace admin API",
		Value:   "http://localhost:2510",
		EnvVars: []string{"FURNACE_HOST"},
	},
}

func run(args []string) error {

	app := cli.App{
		Name:    "cachectl",
		Usage:   "coinpulse cache admin tool",
		Version: versioninfo.Short(),
	}
	app.Commands = []*cli.Command{
		cmdStats,
		cmdWarm,
		cmdFlush,
		cmdInvalidate,
		cmdPublish,
		cmdKeyspace,
		cmdSeed,
	}
	return app.Run(args)
}
