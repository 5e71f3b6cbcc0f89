package osmosis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// BlockWatcherConfig configures the websocket block subscription.
type BlockWatcherConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the reconnect backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the keepalive ping period.
	PingInterval time.Duration
	// WriteTimeout bounds each websocket write.
	WriteTimeout time.Duration
}

// DefaultBlockWatcherConfig returns the default watcher configuration.
func DefaultBlockWatcherConfig() BlockWatcherConfig {
	return BlockWatcherConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// NewBlock is one block notification from the chain.
type NewBlock struct {
	Height int64
	Time   time.Time
}

// BlockWatcher maintains a Tendermint RPC websocket subscription to
// NewBlock events, reconnecting and resubscribing on connection loss.
type BlockWatcher struct {
	endpoint string
	config   BlockWatcherConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	blocks chan NewBlock
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewBlockWatcher connects to the websocket endpoint and subscribes to
// new blocks. The returned channel is closed when the watcher is.
func NewBlockWatcher(ctx context.Context, endpoint string, config *BlockWatcherConfig) (*BlockWatcher, error) {
	cfg := DefaultBlockWatcherConfig()
	if config != nil {
		cfg = *config
	}

	w := &BlockWatcher{
		endpoint: endpoint,
		config:   cfg,
		blocks:   make(chan NewBlock, 64),
		done:     make(chan struct{}),
	}

	if err := w.connect(ctx); err != nil {
		return nil, err
	}

	w.wg.Add(2)
	go w.readLoop()
	go w.pingLoop()

	return w, nil
}

// Blocks returns the notification channel.
func (w *BlockWatcher) Blocks() <-chan NewBlock {
	return w.blocks
}

func (w *BlockWatcher) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	sub := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "subscribe",
		"params":  map[string]string{"query": "tm.event='NewBlock'"},
	}
	conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	w.connMu.Lock()
	w.conn = conn
	w.connMu.Unlock()
	return nil
}

// Close shuts the watcher down and closes the block channel.
func (w *BlockWatcher) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	close(w.done)

	w.connMu.Lock()
	if w.conn != nil {
		w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.conn.Close()
	}
	w.connMu.Unlock()

	w.wg.Wait()
	close(w.blocks)
	return nil
}

type blockNotification struct {
	Result struct {
		Data struct {
			Value struct {
				Block struct {
					Header struct {
						Height string    `json:"height"`
						Time   time.Time `json:"time"`
					} `json:"header"`
				} `json:"block"`
			} `json:"value"`
		} `json:"data"`
	} `json:"result"`
}

func (w *BlockWatcher) readLoop() {
	defer w.wg.Done()

	delay := w.config.ReconnectDelay

	for !w.closed.Load() {
		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			if !w.sleep(delay) {
				return
			}
			delay = min(delay*2, w.config.MaxReconnectDelay)
			w.reconnect()
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if w.closed.Load() {
				return
			}
			w.connMu.Lock()
			w.conn = nil
			w.connMu.Unlock()
			conn.Close()
			continue
		}
		delay = w.config.ReconnectDelay

		var notif blockNotification
		if err := json.Unmarshal(message, &notif); err != nil {
			continue
		}
		header := notif.Result.Data.Value.Block.Header
		if header.Height == "" {
			continue // subscription ack or unrelated message
		}
		height, err := strconv.ParseInt(header.Height, 10, 64)
		if err != nil {
			continue
		}

		select {
		case w.blocks <- NewBlock{Height: height, Time: header.Time}:
		case <-w.done:
			return
		}
	}
}

func (w *BlockWatcher) reconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	w.connect(ctx)
}

// sleep waits for d unless the watcher is closing first.
func (w *BlockWatcher) sleep(d time.Duration) bool {
	select {
	case <-w.done:
		return false
	case <-time.After(d):
		return true
	}
}

func (w *BlockWatcher) pingLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.connMu.Lock()
			if w.conn != nil {
				w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
				w.conn.WriteMessage(websocket.PingMessage, nil)
			}
			w.connMu.Unlock()
		}
	}
}
