package connector

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/quantpair/market-data-pipeline/internal/logger"
	"github.com/quantpair/market-data-pipeline/internal/metrics"
	"github.com/quantpair/market-data-pipeline/internal/queue"
)

// State is the lifecycle state of a stream connector.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

const (
	dialTimeout        = 10 * time.Second
	reconnectInitially = 500 * time.Millisecond
	reconnectMaxDelay  = 30 * time.Second
)

// Conn is the subset of the websocket connection the connector reads from.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens the upstream stream for one instrument's channel URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials the real feed over gorilla/websocket.
type WSDialer struct{}

func (WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// StreamConnector owns one upstream connection for one instrument. It parses
// inbound trade messages into ticks and pushes them onto the shared event
// queue. Transport failures are recovered locally with capped exponential
// backoff and are never fatal to the process; the feed is assumed eventually
// reachable.
type StreamConnector struct {
	instrument string
	endpoint   string
	dialer     Dialer
	queue      *queue.BoundedEventQueue
	logger     *logger.Logger
	state      atomic.Int32
}

func NewStreamConnector(
	instrument string,
	endpoint string,
	dialer Dialer,
	q *queue.BoundedEventQueue,
	log *logger.Logger,
) *StreamConnector {
	return &StreamConnector{
		instrument: instrument,
		endpoint:   endpoint,
		dialer:     dialer,
		queue:      q,
		logger:     log.Component("connector").Instrument(instrument),
	}
}

// State returns the connector's current lifecycle state.
func (c *StreamConnector) State() State {
	return State(c.state.Load())
}

func (c *StreamConnector) setState(s State) {
	c.state.Store(int32(s))
	metrics.ConnectorState.WithLabelValues(c.instrument).Set(float64(s))
}

func (c *StreamConnector) streamURL() string {
	return c.endpoint + "/" + strings.ToLower(c.instrument) + "@trade"
}

// Run connects and consumes the instrument's trade stream until ctx is
// cancelled. It always returns nil: every transport error is recoverable by
// reconnecting, so nothing the connector encounters should stop the process.
func (c *StreamConnector) Run(ctx context.Context) error {
	defer c.setState(StateShutdown)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reconnectInitially
	b.MaxInterval = reconnectMaxDelay
	b.MaxElapsedTime = 0 // retry for as long as the process lives

	connectedBefore := false
	for {
		if ctx.Err() != nil {
			c.logger.Info("connector received shutdown signal")
			return nil
		}

		if connectedBefore {
			c.setState(StateReconnecting)
			metrics.ReconnectsTotal.Inc()
		} else {
			c.setState(StateConnecting)
		}

		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, err := c.dialer.Dial(dialCtx, c.streamURL())
		cancel()
		if err != nil {
			delay := b.NextBackOff()
			c.logger.Warn("feed dial failed, will retry",
				logger.Error(err),
				logger.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				c.logger.Info("connector received shutdown signal during backoff")
				return nil
			case <-time.After(delay):
			}
			continue
		}

		b.Reset()
		c.setState(StateConnected)
		c.logger.Info("feed connected", logger.String("url", c.streamURL()))
		connectedBefore = true

		c.readLoop(ctx, conn)
		_ = conn.Close()
	}
}

// readLoop consumes messages until a transport error or shutdown. A helper
// goroutine closes the connection on ctx cancellation to unblock ReadMessage.
func (c *StreamConnector) readLoop(ctx context.Context, conn Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("feed read failed, connection lost", logger.Error(err))
			}
			return
		}
		c.handleMessage(ctx, raw)
	}
}

// handleMessage parses one inbound message and enqueues the resulting tick.
// Malformed payloads and wrong-channel messages are counted and discarded;
// they never propagate.
func (c *StreamConnector) handleMessage(ctx context.Context, raw []byte) {
	tick, err := ParseTradeMessage(raw)
	if err != nil {
		metrics.ParseErrorsTotal.Inc()
		c.logger.Debug("discarding malformed feed message", logger.Error(err))
		return
	}
	if !strings.EqualFold(tick.Instrument, c.instrument) {
		metrics.ParseErrorsTotal.Inc()
		c.logger.Debug("discarding message for wrong channel",
			logger.String("got", tick.Instrument))
		return
	}

	// Under the blocking queue policy this is where backpressure lands: the
	// read loop stalls until the persister catches up.
	if err := c.queue.Push(ctx, tick); err != nil {
		return
	}
	metrics.TicksReceivedTotal.Inc()
}
