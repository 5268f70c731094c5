// ws_source.go implements the live tick feed named in spec.md section 6:
// a websocket-delivered stream of ticks for --stream mode, as opposed to
// the batch JSONLSource. The reconnect-with-backoff shape (exponential
// delay, capped, guarded conn swap under a mutex, a done channel to unwind
// goroutines) is grounded on solana-token-lab/internal/solana/ws_client.go's
// WSClientImpl.readLoop/reconnect, simplified from a subscription-multiplexed
// JSON-RPC client to a single-stream tick decoder.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"onset-detect/internal/domain"
)

// WSSourceConfig mirrors solana.WSClientConfig's timing knobs, retargeted
// at a tick feed instead of a Solana RPC log subscription.
type WSSourceConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DefaultWSSourceConfig returns the same magnitudes ws_client.go defaults
// to.
func DefaultWSSourceConfig() WSSourceConfig {
	return WSSourceConfig{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSTickSource is a Source backed by a websocket connection emitting one
// JSON tick object per message. It reconnects with exponential backoff on
// read failure and never surfaces a transient disconnect as an error to
// Next; only Close or ctx cancellation ends the stream.
type WSTickSource struct {
	url    string
	config WSSourceConfig

	connMu sync.Mutex
	conn   *websocket.Conn

	ticks  chan domain.Tick
	errs   chan error
	done   chan struct{}
	closed atomic.Bool

	wg sync.WaitGroup
}

// NewWSTickSource dials url and begins streaming in the background. The
// initial dial failure is returned immediately; subsequent failures are
// retried transparently.
func NewWSTickSource(ctx context.Context, url string, cfg WSSourceConfig) (*WSTickSource, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial tick feed: %w", err)
	}

	s := &WSTickSource{
		url:    url,
		config: cfg,
		conn:   conn,
		ticks:  make(chan domain.Tick, 10000),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.readLoop()

	return s, nil
}

// Next returns the next decoded tick, blocking until one arrives, the
// source is closed, or ctx is cancelled.
func (s *WSTickSource) Next(ctx context.Context) (domain.Tick, error) {
	select {
	case <-ctx.Done():
		return domain.Tick{}, ctx.Err()
	case t, ok := <-s.ticks:
		if !ok {
			return domain.Tick{}, fmt.Errorf("tick feed closed")
		}
		return t, nil
	case err := <-s.errs:
		return domain.Tick{}, err
	}
}

// Close ends the stream and releases the connection.
func (s *WSTickSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.ticks)
	return nil
}

func (s *WSTickSource) readLoop() {
	defer s.wg.Done()

	delay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(delay):
				s.reconnect()
				continue
			}
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.connMu.Lock()
			if s.conn != nil {
				_ = s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()

			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
			continue
		}

		delay = s.config.ReconnectDelay

		var rt rawTick
		if err := json.Unmarshal(message, &rt); err != nil {
			select {
			case s.errs <- fmt.Errorf("malformed tick message: %w", err):
			default:
			}
			continue
		}

		select {
		case s.ticks <- rt.toDomain():
		case <-s.done:
			return
		}
	}
}

func (s *WSTickSource) reconnect() {
	if s.closed.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

var _ Source = (*WSTickSource)(nil)
