package models

import (
	"time"

	"gorm.io/gorm"
)

// Coin is the reference row for a tracked asset. The ID is the upstream
// market API slug ("bitcoin", "avalanche-2"), which is also what cache
// keys and invalidation events carry.
type Coin struct {
	ID        string `gorm:"primarykey"`
	Symbol    string `gorm:"uniqueindex"`
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Price is one observed ticker point. The ingest service appends these;
// everything here only ever reads the newest row per coin.
type Price struct {
	ID        uint    `gorm:"primarykey"`
	CoinID    string  `gorm:"index:idx_prices_coin_ts"`
	PriceUSD  float64 `gorm:"column:price_usd"`
	Change24h float64 `gorm:"column:change_24h"`
	Volume24h float64 `gorm:"column:volume_24h"`
	MarketCap float64
	Ts        time.Time `gorm:"index:idx_prices_coin_ts"`
}

const (
	MetricMovingAverage = "moving_average"
	MetricVolatility    = "volatility"
	MetricCorrelation   = "correlation"
)

// AnalyticsMetric is a computed indicator value for one (coin, metric,
// period) combination at a point in time.
type AnalyticsMetric struct {
	ID         uint   `gorm:"primarykey"`
	CoinID     string `gorm:"index:idx_metrics_lookup"`
	MetricType string `gorm:"index:idx_metrics_lookup"`
	Period     int    `gorm:"index:idx_metrics_lookup"`
	Value      float64
	Ts         time.Time
}

// SentimentScore aggregates social and news sentiment for one coin.
// Score runs -1 (bearish) to 1 (bullish); Magnitude is signal strength.
type SentimentScore struct {
	ID          uint   `gorm:"primarykey"`
	CoinID      string `gorm:"index"`
	Score       float64
	Magnitude   float64
	SourceCount int
	Ts          time.Time
}

type User struct {
	gorm.Model
	Email    string `gorm:"uniqueindex"`
	Username string `gorm:"uniqueindex"`
}

type Portfolio struct {
	gorm.Model
	UserID uint `gorm:"index"`
	Name   string
}

type PortfolioHolding struct {
	gorm.Model
	PortfolioID uint `gorm:"index"`
	CoinID      string
	Quantity    float64
	CostBasis   float64
}

// All returns one instance of every model, for AutoMigrate.
func All() []any {
	return []any{
		&Coin{},
		&Price{},
		&AnalyticsMetric{},
		&SentimentScore{},
		&User{},
		&Portfolio{},
		&PortfolioHolding{},
	}
}
