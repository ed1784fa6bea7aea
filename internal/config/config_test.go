package config

import (
	"testing"
	"time"

	"github.com/quantpair/market-data-pipeline/internal/logger"
)

func envFrom(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(envFrom(map[string]string{
		"PG_DSN": "postgres://localhost/ticks",
	}), logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(cfg.Instruments) != 2 || cfg.Instruments[0] != "BTCUSDT" || cfg.Instruments[1] != "ETHUSDT" {
		t.Errorf("instruments = %v", cfg.Instruments)
	}
	if cfg.QueueCapacity != QUEUE_CAPACITY_DEFAULT {
		t.Errorf("queue capacity = %d", cfg.QueueCapacity)
	}
	if cfg.QueuePolicy != QueuePolicyBlock {
		t.Errorf("queue policy = %q", cfg.QueuePolicy)
	}
	if cfg.PersistBatchSize != PERSIST_BATCH_SIZE_DEFAULT {
		t.Errorf("batch size = %d", cfg.PersistBatchSize)
	}
	if cfg.PersistFlushEvery != PERSIST_FLUSH_MS_DEFAULT*time.Millisecond {
		t.Errorf("flush interval = %v", cfg.PersistFlushEvery)
	}
	if cfg.FeedEndpoint != FEED_ENDPOINT_DEFAULT {
		t.Errorf("feed endpoint = %q", cfg.FeedEndpoint)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("metrics addr = %q", cfg.MetricsAddr)
	}
}

func TestLoadConfig_RequiresDSN(t *testing.T) {
	_, err := LoadConfig(envFrom(map[string]string{}), logger.NewNoOpLogger())
	if err == nil {
		t.Fatal("expected error without PG_DSN")
	}
}

func TestLoadConfig_ParsesInstrumentList(t *testing.T) {
	cfg, err := LoadConfig(envFrom(map[string]string{
		"PG_DSN":      "postgres://localhost/ticks",
		"INSTRUMENTS": " btcusdt, solusdt ,,ETHUSDT ",
	}), logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := []string{"BTCUSDT", "SOLUSDT", "ETHUSDT"}
	if len(cfg.Instruments) != len(want) {
		t.Fatalf("instruments = %v", cfg.Instruments)
	}
	for i := range want {
		if cfg.Instruments[i] != want[i] {
			t.Errorf("instruments[%d] = %q, want %q", i, cfg.Instruments[i], want[i])
		}
	}
}

func TestLoadConfig_QueuePolicy(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    QueuePolicy
		wantErr bool
	}{
		{"empty_defaults_to_block", "", QueuePolicyBlock, false},
		{"block", "block", QueuePolicyBlock, false},
		{"drop_oldest", "drop_oldest", QueuePolicyDropOldest, false},
		{"case_insensitive", "Drop_Oldest", QueuePolicyDropOldest, false},
		{"unknown_rejected", "drop_newest", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(envFrom(map[string]string{
				"PG_DSN":       "postgres://localhost/ticks",
				"QUEUE_POLICY": tt.value,
			}), logger.NewNoOpLogger())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.QueuePolicy != tt.want {
				t.Errorf("policy = %q, want %q", cfg.QueuePolicy, tt.want)
			}
		})
	}
}

func TestLoadConfig_ClampsToMinimums(t *testing.T) {
	cfg, err := LoadConfig(envFrom(map[string]string{
		"PG_DSN":             "postgres://localhost/ticks",
		"QUEUE_CAPACITY":     "1",
		"PERSIST_BATCH_SIZE": "0",
		"PERSIST_FLUSH_MS":   "5",
	}), logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.QueueCapacity != QUEUE_CAPACITY_MIN {
		t.Errorf("queue capacity = %d, want min %d", cfg.QueueCapacity, QUEUE_CAPACITY_MIN)
	}
	if cfg.PersistBatchSize != PERSIST_BATCH_SIZE_MIN {
		t.Errorf("batch size = %d, want min %d", cfg.PersistBatchSize, PERSIST_BATCH_SIZE_MIN)
	}
	if cfg.PersistFlushEvery != PERSIST_FLUSH_MS_MIN*time.Millisecond {
		t.Errorf("flush interval = %v, want min %v", cfg.PersistFlushEvery, PERSIST_FLUSH_MS_MIN*time.Millisecond)
	}
}

func TestLoadConfig_InvalidIntFallsBack(t *testing.T) {
	cfg, err := LoadConfig(envFrom(map[string]string{
		"PG_DSN":         "postgres://localhost/ticks",
		"QUEUE_CAPACITY": "not-a-number",
	}), logger.NewNoOpLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.QueueCapacity != QUEUE_CAPACITY_DEFAULT {
		t.Errorf("queue capacity = %d, want default", cfg.QueueCapacity)
	}
}

func TestLoadConfig_InvalidRedisDBRejected(t *testing.T) {
	_, err := LoadConfig(envFrom(map[string]string{
		"PG_DSN":         "postgres://localhost/ticks",
		"REDIS_CACHE_DB": "two",
	}), logger.NewNoOpLogger())
	if err == nil {
		t.Fatal("expected error for non-numeric REDIS_CACHE_DB")
	}
}
