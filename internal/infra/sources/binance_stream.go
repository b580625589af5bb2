package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"pricealert_go/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	defaultBinanceWSURL = "wss://stream.binance.com:9443/ws"
	streamMaxRetries    = 10
	streamReadTimeout   = 60 * time.Second

	// staleAfter is how long a cached stream price stays answerable.
	// Beyond that the worker reports no price and the resolver falls
	// through to a REST adapter.
	staleAfter = 30 * time.Second
)

// miniTicker is one entry of the !miniTicker@arr stream.
type miniTicker struct {
	EventType string `json:"e"` // 24hrMiniTicker
	Symbol    string `json:"s"` // BTCUSDT
	Close     string `json:"c"` // latest price
}

type cachedPrice struct {
	price decimal.Decimal
	at    time.Time
}

// BinanceStream keeps a live last-price cache fed by the Binance all-market
// miniTicker WebSocket stream. As a resolver source it answers from the
// cache while entries are fresh.
type BinanceStream struct {
	wsURL string
	now   func() time.Time

	cache   map[string]cachedPrice
	cacheMu sync.RWMutex

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewBinanceStream creates the stream worker. An empty wsURL uses the
// public endpoint.
func NewBinanceStream(wsURL string) *BinanceStream {
	if wsURL == "" {
		wsURL = defaultBinanceWSURL
	}
	return &BinanceStream{
		wsURL: wsURL,
		now:   time.Now,
		cache: make(map[string]cachedPrice),
	}
}

func (w *BinanceStream) Name() string { return "binance-stream" }

// FetchPrice answers from the live cache. A missing or stale entry is an
// error so the resolver falls through to the next adapter.
func (w *BinanceStream) FetchPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	w.cacheMu.RLock()
	entry, ok := w.cache[symbol]
	w.cacheMu.RUnlock()

	if !ok {
		return decimal.Zero, fmt.Errorf("binance-stream %s: not in cache", symbol)
	}
	if w.now().Sub(entry.at) > staleAfter {
		return decimal.Zero, fmt.Errorf("binance-stream %s: cache entry stale", symbol)
	}
	return entry.price, nil
}

// Connect starts the WebSocket connection loop.
func (w *BinanceStream) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *BinanceStream) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Binance stream connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > streamMaxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *BinanceStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, http.Header{})
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	slog.Info("Binance stream connected")
	return nil
}

func (w *BinanceStream) subscribe() error {
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": []string{"!miniTicker@arr"},
		"id":     time.Now().UnixNano(),
	}
	b, _ := json.Marshal(msg)
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *BinanceStream) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *BinanceStream) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Capture the conn under the lock: Disconnect can nil the field
		// from another goroutine at any point.
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *BinanceStream) handleMessage(msg []byte) {
	var tickers []miniTicker
	if json.Unmarshal(msg, &tickers) != nil {
		return // subscription acks and single events are ignored
	}

	now := w.now()
	w.cacheMu.Lock()
	defer w.cacheMu.Unlock()
	for _, t := range tickers {
		if t.EventType != "24hrMiniTicker" || !strings.HasSuffix(t.Symbol, "USDT") {
			continue
		}
		price, err := decimal.NewFromString(t.Close)
		if err != nil {
			continue
		}
		symbol := strings.TrimSuffix(t.Symbol, "USDT")
		w.cache[symbol] = cachedPrice{price: price, at: now}
	}
}

func (w *BinanceStream) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect stops the connection loop and waits for it to exit.
func (w *BinanceStream) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
