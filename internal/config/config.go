package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quantpair/market-data-pipeline/internal/logger"
)

const (
	QUEUE_CAPACITY_DEFAULT = 4096
	QUEUE_CAPACITY_MIN     = 64

	PERSIST_BATCH_SIZE_DEFAULT = 256
	PERSIST_BATCH_SIZE_MIN     = 1

	PERSIST_FLUSH_MS_DEFAULT = 500
	PERSIST_FLUSH_MS_MIN     = 50

	POP_TIMEOUT_MS_DEFAULT = 250

	FEED_ENDPOINT_DEFAULT = "wss://fstream.binance.com/ws"
)

// QueuePolicy selects the backpressure behavior of the bounded event queue
// when it is full.
type QueuePolicy string

const (
	// QueuePolicyBlock blocks producers until capacity is available. No
	// accepted tick is ever dropped; backpressure propagates into the
	// websocket read loop.
	QueuePolicyBlock QueuePolicy = "block"
	// QueuePolicyDropOldest evicts the oldest queued tick to admit the new
	// one, trading completeness for bounded staleness under sustained bursts.
	QueuePolicyDropOldest QueuePolicy = "drop_oldest"
)

type Config struct {
	Instruments []string

	FeedEndpoint string

	QueueCapacity int
	QueuePolicy   QueuePolicy

	PersistBatchSize  int
	PersistFlushEvery time.Duration
	PopTimeout        time.Duration

	PostgresDSN          string
	PostgresMaxOpenConns int
	PostgresMaxIdleConns int
	PostgresQueryTimeout time.Duration

	RedisCacheAddr string
	RedisCacheUser string
	RedisCachePw   string
	RedisCacheDB   int

	RedisPubsubAddr string
	RedisPubsubUser string
	RedisPubsubPw   string

	MetricsAddr string
}

func LoadConfig(getenv func(string) string, log *logger.Logger) (*Config, error) {
	log.Info("loading configuration from environment")

	dsn := getenv("PG_DSN")
	if dsn == "" {
		return nil, fmt.Errorf("PG_DSN is required: the pipeline has no purpose without durable storage")
	}

	queueCapacity := intFromEnv(getenv("QUEUE_CAPACITY"), QUEUE_CAPACITY_DEFAULT, log, "QUEUE_CAPACITY")
	if queueCapacity < QUEUE_CAPACITY_MIN {
		log.Warn("queue capacity too low, using minimum value",
			logger.Int("provided", queueCapacity),
			logger.Int("min", QUEUE_CAPACITY_MIN))
		queueCapacity = QUEUE_CAPACITY_MIN
	}

	policy := QueuePolicy(strings.ToLower(strings.TrimSpace(getenv("QUEUE_POLICY"))))
	switch policy {
	case QueuePolicyBlock, QueuePolicyDropOldest:
	case "":
		policy = QueuePolicyBlock
	default:
		return nil, fmt.Errorf("QUEUE_POLICY must be %q or %q, got %q", QueuePolicyBlock, QueuePolicyDropOldest, policy)
	}

	batchSize := intFromEnv(getenv("PERSIST_BATCH_SIZE"), PERSIST_BATCH_SIZE_DEFAULT, log, "PERSIST_BATCH_SIZE")
	if batchSize < PERSIST_BATCH_SIZE_MIN {
		log.Warn("persist batch size too low, using minimum value",
			logger.Int("provided", batchSize),
			logger.Int("min", PERSIST_BATCH_SIZE_MIN))
		batchSize = PERSIST_BATCH_SIZE_MIN
	}

	flushMs := intFromEnv(getenv("PERSIST_FLUSH_MS"), PERSIST_FLUSH_MS_DEFAULT, log, "PERSIST_FLUSH_MS")
	if flushMs < PERSIST_FLUSH_MS_MIN {
		log.Warn("persist flush interval too low, using minimum value",
			logger.Int("provided_ms", flushMs),
			logger.Int("min_ms", PERSIST_FLUSH_MS_MIN))
		flushMs = PERSIST_FLUSH_MS_MIN
	}

	feedEndpoint := getenv("FEED_WS_ENDPOINT")
	if feedEndpoint == "" {
		log.Info("no feed endpoint specified, using default",
			logger.String("endpoint", FEED_ENDPOINT_DEFAULT))
		feedEndpoint = FEED_ENDPOINT_DEFAULT
	}

	redisCacheDB := 0
	if v := getenv("REDIS_CACHE_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			log.Error("invalid Redis cache DB value, must be a number",
				logger.String("value", v),
				logger.Error(err))
			return nil, fmt.Errorf("REDIS_CACHE_DB can't be parsed to a number: %w", err)
		}
		redisCacheDB = db
	}

	metricsAddr := getenv("METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}

	cfg := &Config{
		Instruments: parseInstruments(getenv("INSTRUMENTS"), log),

		FeedEndpoint: feedEndpoint,

		QueueCapacity: queueCapacity,
		QueuePolicy:   policy,

		PersistBatchSize:  batchSize,
		PersistFlushEvery: time.Duration(flushMs) * time.Millisecond,
		PopTimeout:        POP_TIMEOUT_MS_DEFAULT * time.Millisecond,

		PostgresDSN:          dsn,
		PostgresMaxOpenConns: intFromEnv(getenv("PG_MAX_OPEN_CONNS"), 10, log, "PG_MAX_OPEN_CONNS"),
		PostgresMaxIdleConns: intFromEnv(getenv("PG_MAX_IDLE_CONNS"), 5, log, "PG_MAX_IDLE_CONNS"),
		PostgresQueryTimeout: time.Duration(intFromEnv(getenv("PG_QUERY_TIMEOUT_MS"), 10_000, log, "PG_QUERY_TIMEOUT_MS")) * time.Millisecond,

		RedisCacheAddr: getenv("REDIS_CACHE_ADDR"),
		RedisCacheUser: getenv("REDIS_CACHE_UN"),
		RedisCachePw:   getenv("REDIS_CACHE_PW"),
		RedisCacheDB:   redisCacheDB,

		RedisPubsubAddr: getenv("REDIS_PUBSUB_ADDR"),
		RedisPubsubUser: getenv("REDIS_PUBSUB_UN"),
		RedisPubsubPw:   getenv("REDIS_PUBSUB_PW"),

		MetricsAddr: metricsAddr,
	}

	if cfg.RedisCacheAddr == "" {
		log.Warn("no Redis cache address specified, latest prices will not be mirrored")
	}
	if cfg.RedisPubsubAddr == "" {
		log.Warn("no Redis pubsub address specified, price updates will not be published")
	}

	log.Info("configuration loaded successfully",
		logger.Any("instruments", cfg.Instruments),
		logger.String("feed_endpoint", cfg.FeedEndpoint),
		logger.Int("queue_capacity", cfg.QueueCapacity),
		logger.String("queue_policy", string(cfg.QueuePolicy)),
		logger.Int("persist_batch_size", cfg.PersistBatchSize),
		logger.Duration("persist_flush_every", cfg.PersistFlushEvery),
		logger.String("redis_cache_addr", cfg.RedisCacheAddr),
		logger.String("redis_pubsub_addr", cfg.RedisPubsubAddr),
		logger.String("metrics_addr", cfg.MetricsAddr))

	return cfg, nil
}

// intFromEnv parses an integer environment value, falling back to the default
// on absence or parse failure.
func intFromEnv(value string, def int, log *logger.Logger, name string) int {
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn("invalid integer in environment, using default",
			logger.String("name", name),
			logger.String("value", value),
			logger.Int("default", def),
			logger.Error(err))
		return def
	}
	return n
}

// parseInstruments parses the comma-separated list of instruments from the
// environment.
func parseInstruments(instrumentsStr string, log *logger.Logger) []string {
	defaultInstruments := []string{"BTCUSDT", "ETHUSDT"}

	if instrumentsStr == "" {
		log.Info("no instruments provided, using default pair",
			logger.Any("instruments", defaultInstruments))
		return defaultInstruments
	}

	instruments := strings.Split(instrumentsStr, ",")
	var filtered []string
	for _, s := range instruments {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			filtered = append(filtered, s)
		}
	}

	if len(filtered) == 0 {
		log.Warn("all provided instruments were empty, using default pair",
			logger.Any("defaults", defaultInstruments))
		return defaultInstruments
	}

	return filtered
}
