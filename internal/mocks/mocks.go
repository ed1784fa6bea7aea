package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/quantpair/market-data-pipeline/internal/connector"
	"github.com/quantpair/market-data-pipeline/pkg/marketdata"
)

// MockTickRepo is an in-memory tick store that deduplicates on
// (instrument, trade_id), mirroring the database's conflict handling.
type MockTickRepo struct {
	mu       sync.Mutex
	ticks    map[string]map[int64]marketdata.Tick
	failures int
	failErr  error
}

func NewMockTickRepo() *MockTickRepo {
	return &MockTickRepo{ticks: make(map[string]map[int64]marketdata.Tick)}
}

// FailNext makes the next n InsertBatch calls return err.
func (r *MockTickRepo) FailNext(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = n
	r.failErr = err
}

func (r *MockTickRepo) InsertBatch(ctx context.Context, ticks []marketdata.Tick) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failures > 0 {
		r.failures--
		return 0, r.failErr
	}

	var inserted int64
	for _, tick := range ticks {
		byID, ok := r.ticks[tick.Instrument]
		if !ok {
			byID = make(map[int64]marketdata.Tick)
			r.ticks[tick.Instrument] = byID
		}
		if _, exists := byID[tick.TradeID]; exists {
			continue
		}
		byID[tick.TradeID] = tick
		inserted++
	}
	return inserted, nil
}

func (r *MockTickRepo) ListByInstrument(ctx context.Context, instrument string, from, to int64) ([]marketdata.Tick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []marketdata.Tick
	for _, tick := range r.ticks[instrument] {
		if tick.Timestamp >= from && tick.Timestamp < to {
			out = append(out, tick)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].TradeID < out[j].TradeID
	})
	return out, nil
}

func (r *MockTickRepo) Latest(ctx context.Context, instrument string) (*marketdata.Tick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *marketdata.Tick
	for id := range r.ticks[instrument] {
		tick := r.ticks[instrument][id]
		if latest == nil || tick.Timestamp > latest.Timestamp ||
			(tick.Timestamp == latest.Timestamp && tick.TradeID > latest.TradeID) {
			t := tick
			latest = &t
		}
	}
	return latest, nil
}

// Count returns the number of stored ticks for an instrument, or across all
// instruments when instrument is empty.
func (r *MockTickRepo) Count(instrument string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if instrument != "" {
		return len(r.ticks[instrument])
	}
	total := 0
	for _, byID := range r.ticks {
		total += len(byID)
	}
	return total
}

// MockCacheClient records Set calls in memory.
type MockCacheClient struct {
	mu     sync.Mutex
	values map[string]any
	SetErr error
}

func NewMockCacheClient() *MockCacheClient {
	return &MockCacheClient{values: make(map[string]any)}
}

func (c *MockCacheClient) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if c.SetErr != nil {
		return c.SetErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *MockCacheClient) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *MockCacheClient) Close() error { return nil }

// MockPubsubClient records published messages per channel.
type MockPubsubClient struct {
	mu       sync.Mutex
	messages map[string][]any
}

func NewMockPubsubClient() *MockPubsubClient {
	return &MockPubsubClient{messages: make(map[string][]any)}
}

func (p *MockPubsubClient) Publish(ctx context.Context, channel string, message any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[channel] = append(p.messages[channel], message)
	return nil
}

func (p *MockPubsubClient) Messages(channel string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]any, len(p.messages[channel]))
	copy(out, p.messages[channel])
	return out
}

func (p *MockPubsubClient) Close() error { return nil }

// ErrConnClosed is returned by MockConn reads after Close.
var ErrConnClosed = errors.New("mock connection closed")

// MockConn replays a fixed sequence of frames and then blocks until closed.
// With FailWhenDrained set it instead reports a transport error once the
// frames run out, simulating a dropped connection.
type MockConn struct {
	mu              sync.Mutex
	frames          [][]byte
	closed          chan struct{}
	closedMu        sync.Once
	FailWhenDrained bool
}

func NewMockConn(frames ...[]byte) *MockConn {
	return &MockConn{frames: frames, closed: make(chan struct{})}
}

func (c *MockConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if len(c.frames) > 0 {
		frame := c.frames[0]
		c.frames = c.frames[1:]
		c.mu.Unlock()
		return 1, frame, nil
	}
	drained := c.FailWhenDrained
	c.mu.Unlock()
	if drained {
		return 0, nil, ErrConnClosed
	}
	<-c.closed
	return 0, nil, ErrConnClosed
}

func (c *MockConn) Close() error {
	c.closedMu.Do(func() { close(c.closed) })
	return nil
}

// ErrNoMoreConns is returned by MockDialer once its connections run out.
var ErrNoMoreConns = errors.New("mock dialer exhausted")

// MockDialer hands out prepared connections in order, then fails.
type MockDialer struct {
	mu    sync.Mutex
	conns []*MockConn
	dials int
}

func NewMockDialer(conns ...*MockConn) *MockDialer {
	return &MockDialer{conns: conns}
}

func (d *MockDialer) Dial(ctx context.Context, url string) (connector.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, ErrNoMoreConns
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *MockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
