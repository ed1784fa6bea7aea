package mockdata

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/quantpair/market-data-pipeline/internal/logger"
	"github.com/quantpair/market-data-pipeline/internal/metrics"
	"github.com/quantpair/market-data-pipeline/internal/queue"
	"github.com/quantpair/market-data-pipeline/pkg/marketdata"
)

// Config shapes the synthetic pair. The follower's price tracks the leader
// linearly, so a correctly working analytics engine should recover Ratio as
// the hedge ratio from the generated data.
type Config struct {
	Leader         string
	Follower       string
	Ratio          float64
	BasePrice      float64
	Volatility     float64 // per-step fractional random walk size
	Noise          float64 // absolute noise added to the follower
	TicksPerSecond int
}

func DefaultConfig() Config {
	return Config{
		Leader:         "BTCUSDT",
		Follower:       "ETHUSDT",
		Ratio:          2.0,
		BasePrice:      100.0,
		Volatility:     0.002,
		Noise:          0.05,
		TicksPerSecond: 20,
	}
}

// Generator feeds the pipeline with a synthetic correlated pair in place of
// the live websocket feed. Useful for load exercises and working offline.
type Generator struct {
	config Config
	logger *logger.Logger
	rng    *rand.Rand
	price  float64
	nextID int64
}

func NewGenerator(config Config, log *logger.Logger) *Generator {
	return &Generator{
		config: config,
		logger: log.Component("mockdata"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		price:  config.BasePrice,
		nextID: 1,
	}
}

// Start emits tick pairs at the configured rate until ctx is cancelled.
func (g *Generator) Start(ctx context.Context, q *queue.BoundedEventQueue) error {
	interval := time.Second / time.Duration(g.config.TicksPerSecond)
	g.logger.Info("starting mock data generator",
		logger.String("leader", g.config.Leader),
		logger.String("follower", g.config.Follower),
		logger.Float64("ratio", g.config.Ratio),
		logger.Int("ticks_per_second", g.config.TicksPerSecond))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var generated int
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("mock data generator shutting down",
				logger.Int("total_ticks_generated", generated))
			return nil

		case <-ticker.C:
			now := time.Now().UnixMilli()
			for _, tick := range g.step(now) {
				if err := q.Push(ctx, tick); err != nil {
					return nil
				}
				generated++
				metrics.MockTicksGeneratedTotal.Inc()
			}
		}
	}
}

// step advances the leader's random walk and derives the follower.
func (g *Generator) step(now int64) [2]marketdata.Tick {
	// Random walk with mild mean reversion toward the base price.
	change := (g.rng.Float64()*2 - 1) * g.config.Volatility * g.price
	change += (g.config.BasePrice - g.price) * 0.01
	g.price = math.Max(0.01, g.price+change)

	follower := g.config.Ratio*g.price + (g.rng.Float64()*2-1)*g.config.Noise

	leaderTick := marketdata.Tick{
		Instrument: g.config.Leader,
		Price:      g.price,
		Quantity:   1 + g.rng.Float64()*10,
		TradeID:    g.nextID,
		Timestamp:  now,
	}
	followerTick := marketdata.Tick{
		Instrument: g.config.Follower,
		Price:      math.Max(0.01, follower),
		Quantity:   1 + g.rng.Float64()*10,
		TradeID:    g.nextID,
		Timestamp:  now,
	}
	g.nextID++
	return [2]marketdata.Tick{leaderTick, followerTick}
}

// GeneratePair deterministically produces n paired samples (2n ticks) with
// the given timestamp spacing, for tests that need a known linear
// relationship between two instruments.
func GeneratePair(config Config, n int, seed int64, start int64, step time.Duration) []marketdata.Tick {
	rng := rand.New(rand.NewSource(seed))
	price := config.BasePrice
	stepMs := step.Milliseconds()

	ticks := make([]marketdata.Tick, 0, 2*n)
	for i := 0; i < n; i++ {
		change := (rng.Float64()*2 - 1) * config.Volatility * price
		change += (config.BasePrice - price) * 0.01
		price = math.Max(0.01, price+change)

		follower := config.Ratio*price + (rng.Float64()*2-1)*config.Noise
		ts := start + int64(i)*stepMs
		id := int64(i + 1)

		ticks = append(ticks,
			marketdata.Tick{Instrument: config.Leader, Price: price, Quantity: 1, TradeID: id, Timestamp: ts},
			marketdata.Tick{Instrument: config.Follower, Price: math.Max(0.01, follower), Quantity: 1, TradeID: id, Timestamp: ts},
		)
	}
	return ticks
}
