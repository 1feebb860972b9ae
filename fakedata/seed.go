// Package fakedata populates a development database with sample rows:
// coins, price history, analytics metrics, sentiment scores, accounts and
// portfolios. Intended for local development and benchmarking; the same
// seed always produces the same dataset.
package fakedata

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"

	"github.com/coinpulse/coinpulse/models"
)

// wellKnownCoins are seeded first so cache warming and demo dashboards
// find the assets they expect.
var wellKnownCoins = []models.Coin{
	{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"},
	{ID: "ethereum", Symbol: "ETH", Name: "Ethereum"},
	{ID: "binance-coin", Symbol: "BNB", Name: "BNB"},
	{ID: "cardano", Symbol: "ADA", Name: "Cardano"},
	{ID: "solana", Symbol: "SOL", Name: "Solana"},
	{ID: "polkadot", Symbol: "DOT", Name: "Polkadot"},
	{ID: "litecoin", Symbol: "LTC", Name: "Litecoin"},
	{ID: "ripple", Symbol: "XRP", Name: "XRP"},
	{ID: "dogecoin", Symbol: "DOGE", Name: "Dogecoin"},
	{ID: "avalanche-2", Symbol: "AVAX", Name: "Avalanche"},
}

var (
	movingAveragePeriods = []int{7, 20, 50}
	volatilityPeriods    = []int{14, 30}
	portfolioNames       = []string{"main", "hodl", "swing", "retirement", "experiments"}
)

type Opts struct {
	Seed int64

	// Coins is the total number of coins, the well-known ones included.
	Coins int

	Users int

	// PricePoints is the number of ticker rows per coin, at five minute
	// spacing ending now.
	PricePoints int
}

func DefaultOpts() Opts {
	return Opts{Seed: 1, Coins: 10, Users: 25, PricePoints: 288}
}

// Seed creates any missing tables and fills them. It is additive, so run
// it against an empty database.
func Seed(db *gorm.DB, opts Opts) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}

	faker := gofakeit.New(opts.Seed)
	now := time.Now().UTC().Truncate(time.Minute)

	coins, err := seedCoins(db, faker, opts.Coins)
	if err != nil {
		return err
	}
	last, err := seedPrices(db, faker, coins, opts.PricePoints, now)
	if err != nil {
		return err
	}
	if err := seedAnalytics(db, faker, coins, last, now); err != nil {
		return err
	}
	if err := seedSentiment(db, faker, coins, now); err != nil {
		return err
	}
	if err := seedAccounts(db, faker, coins, last, opts.Users); err != nil {
		return err
	}
	slog.Info("seeded fake data", "coins", len(coins), "users", opts.Users, "price_points", opts.PricePoints)
	return nil
}

func seedCoins(db *gorm.DB, faker *gofakeit.Faker, total int) ([]models.Coin, error) {
	coins := append([]models.Coin{}, wellKnownCoins...)
	if total < len(coins) {
		coins = coins[:total]
	}
	for i := len(coins); i < total; i++ {
		word := strings.ToLower(faker.Word())
		coins = append(coins, models.Coin{
			ID:     fmt.Sprintf("%s-%d", word, i),
			Symbol: strings.ToUpper(faker.LetterN(4)),
			Name:   strings.ToUpper(word[:1]) + word[1:],
		})
	}
	if err := db.Create(&coins).Error; err != nil {
		return nil, fmt.Errorf("seeding coins: %w", err)
	}
	return coins, nil
}

// seedPrices writes a random walk per coin and returns the final (newest)
// price of each, which the other seeders price their rows off.
func seedPrices(db *gorm.DB, faker *gofakeit.Faker, coins []models.Coin, points int, now time.Time) (map[string]float64, error) {
	last := make(map[string]float64, len(coins))
	rows := make([]models.Price, 0, len(coins)*points)
	for _, coin := range coins {
		price := faker.Float64Range(0.05, 70000)
		supply := faker.Float64Range(1e6, 5e8)
		for i := 0; i < points; i++ {
			price = price * (1 + faker.Float64Range(-0.015, 0.015))
			rows = append(rows, models.Price{
				CoinID:    coin.ID,
				PriceUSD:  price,
				Change24h: faker.Float64Range(-12, 12),
				Volume24h: price * supply * faker.Float64Range(0.001, 0.05),
				MarketCap: price * supply,
				Ts:        now.Add(-time.Duration(points-1-i) * 5 * time.Minute),
			})
		}
		last[coin.ID] = price
	}
	if err := db.CreateInBatches(&rows, 500).Error; err != nil {
		return nil, fmt.Errorf("seeding prices: %w", err)
	}
	return last, nil
}

func seedAnalytics(db *gorm.DB, faker *gofakeit.Faker, coins []models.Coin, last map[string]float64, now time.Time) error {
	var rows []models.AnalyticsMetric
	for _, coin := range coins {
		price := last[coin.ID]
		for _, period := range movingAveragePeriods {
			rows = append(rows, models.AnalyticsMetric{
				CoinID:     coin.ID,
				MetricType: models.MetricMovingAverage,
				Period:     period,
				Value:      price * faker.Float64Range(0.9, 1.1),
				Ts:         now,
			})
		}
		for _, period := range volatilityPeriods {
			rows = append(rows, models.AnalyticsMetric{
				CoinID:     coin.ID,
				MetricType: models.MetricVolatility,
				Period:     period,
				Value:      faker.Float64Range(0.005, 0.9),
				Ts:         now,
			})
		}
	}
	if err := db.CreateInBatches(&rows, 500).Error; err != nil {
		return fmt.Errorf("seeding analytics: %w", err)
	}
	return nil
}

func seedSentiment(db *gorm.DB, faker *gofakeit.Faker, coins []models.Coin, now time.Time) error {
	var rows []models.SentimentScore
	for _, coin := range coins {
		for i := 0; i < 12; i++ {
			rows = append(rows, models.SentimentScore{
				CoinID:      coin.ID,
				Score:       faker.Float64Range(-1, 1),
				Magnitude:   faker.Float64Range(0, 1),
				SourceCount: faker.Number(3, 80),
				Ts:          now.Add(-time.Duration(11-i) * time.Hour),
			})
		}
	}
	if err := db.CreateInBatches(&rows, 500).Error; err != nil {
		return fmt.Errorf("seeding sentiment: %w", err)
	}
	return nil
}

func seedAccounts(db *gorm.DB, faker *gofakeit.Faker, coins []models.Coin, last map[string]float64, users int) error {
	for i := 0; i < users; i++ {
		// suffix with the index so generated usernames never collide
		username := fmt.Sprintf("%s%d", strings.ToLower(faker.Username()), i)
		user := models.User{
			Email:    fmt.Sprintf("%s@%s", username, faker.DomainName()),
			Username: username,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("seeding users: %w", err)
		}
		portfolios := 1 + faker.Number(0, 1)
		for p := 0; p < portfolios; p++ {
			portfolio := models.Portfolio{
				UserID: user.ID,
				Name:   portfolioNames[faker.Number(0, len(portfolioNames)-1)],
			}
			if err := db.Create(&portfolio).Error; err != nil {
				return fmt.Errorf("seeding portfolios: %w", err)
			}
			holdings := faker.Number(1, 5)
			for h := 0; h < holdings; h++ {
				coin := coins[faker.Number(0, len(coins)-1)]
				qty := faker.Float64Range(0.01, 500)
				holding := models.PortfolioHolding{
					PortfolioID: portfolio.ID,
					CoinID:      coin.ID,
					Quantity:    qty,
					CostBasis:   qty * last[coin.ID] * faker.Float64Range(0.5, 1.5),
				}
				if err := db.Create(&holding).Error; err != nil {
					return fmt.Errorf("seeding holdings: %w", err)
				}
			}
		}
	}
	return nil
}
