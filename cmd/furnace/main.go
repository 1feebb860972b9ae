package main

import (
	"fmt"
	"io"
	"log/slog"
	_ "net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/coinpulse/coinpulse/invalidation"
	"github.com/coinpulse/coinpulse/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "furnace",
		Usage:   "coinpulse cache daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL: redis://<user>:<pass>@<hostname>:6379/<db>",
			Value:   "redis://localhost:6379/0",
			EnvVars: []string{"FURNACE_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string (sqlite:// or postgres://)",
			Value:   "sqlite://data/furnace/coinpulse.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"FURNACE_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the cache daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the admin API",
			Value:   ":2510",
			EnvVars: []string{"FURNACE_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":2511",
			EnvVars: []string{"FURNACE_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "invalidation-channel",
			Usage:   "redis pub/sub channel carrying invalidation events",
			Value:   invalidation.DefaultChannel,
			EnvVars: []string{"FURNACE_INVALIDATION_CHANNEL"},
		},
		&cli.StringSliceFlag{
			Name:    "popular-coins",
			Usage:   "coin slugs kept warm by the warming loops (defaults to the top-10 set)",
			EnvVars: []string{"FURNACE_POPULAR_COINS"},
		},
		&cli.BoolFlag{
			Name:    "allow-flush",
			Usage:   "permit the full-keyspace flush endpoint",
			EnvVars: []string{"FURNACE_ALLOW_FLUSH"},
		},
		&cli.BoolFlag{
			Name:    "warm-on-startup",
			Usage:   "run a full warming pass before serving",
			Value:   true,
			EnvVars: []string{"FURNACE_WARM_ON_STARTUP"},
		},
		&cli.DurationFlag{
			Name:    "warm-price-interval",
			Usage:   "how often to refresh popular coin prices (0 disables)",
			Value:   5 * time.Minute,
			EnvVars: []string{"FURNACE_WARM_PRICE_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "warm-analytics-interval",
			Usage:   "how often to refresh analytics metrics (0 disables)",
			Value:   time.Hour,
			EnvVars: []string{"FURNACE_WARM_ANALYTICS_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "warm-sentiment-interval",
			Usage:   "how often to refresh sentiment scores (0 disables)",
			Value:   10 * time.Minute,
			EnvVars: []string{"FURNACE_WARM_SENTIMENT_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "warm-market-interval",
			Usage:   "how often to refresh the market summary and trending set (0 disables)",
			Value:   10 * time.Minute,
			EnvVars: []string{"FURNACE_WARM_MARKET_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit otel spans for database queries",
			EnvVars: []string{"FURNACE_DB_TRACING"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stdout)

		shutdownOTEL, err := configOTEL("furnace")
		if err != nil {
			return err
		}
		defer shutdownOTEL()

		db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}
		if cctx.Bool("db-tracing") {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return err
			}
		}

		srv, err := NewServer(db, Config{
			Logger:              logger,
			RedisURL:            cctx.String("redis-url"),
			Bind:                cctx.String("bind"),
			MetricsListen:       cctx.String("metrics-listen"),
			InvalidationChannel: cctx.String("invalidation-channel"),
			PopularCoins:        cctx.StringSlice("popular-coins"),
			AllowFlush:          cctx.Bool("allow-flush"),
			WarmOnStartup:       cctx.Bool("warm-on-startup"),
			PriceInterval:       cctx.Duration("warm-price-interval"),
			AnalyticsInterval:   cctx.Duration("warm-analytics-interval"),
			SentimentInterval:   cctx.Duration("warm-sentiment-interval"),
			MarketInterval:      cctx.Duration("warm-market-interval"),
		})
		if err != nil {
			return fmt.Errorf("failed to construct server: %w", err)
		}

		return srv.Run()
	},
}
