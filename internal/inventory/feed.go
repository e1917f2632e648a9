package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/gorilla/websocket"

	"trolley/internal/inventory/metrics"
)

// Record is the server-authoritative stock position for one product. Records
// are never client-authored; they exist only as received from the feed.
type Record struct {
	ProductID     string `json:"productId"`
	Stock         int    `json:"stock"`
	ReservedStock int    `json:"reservedStock"`
}

// Available returns the quantity still offerable to shoppers. ReservedStock
// counts holds from all shoppers, so this is the authoritative add-to-cart
// check.
func (r Record) Available() int {
	if r.Stock <= r.ReservedStock {
		return 0
	}
	return r.Stock - r.ReservedStock
}

// Feed maintains a live product-to-record mapping sourced from the storefront's
// inventory push feed. The mapping is empty until the first frame arrives.
//
// Frame semantics, in receipt order:
//   - more than one record: the whole mapping is replaced
//   - exactly one record: merged into the mapping
//   - empty or malformed payload: ignored and logged
//
// The feed does not reconnect on its own; the owner decides reconnection
// policy and must call Close when done.
type Feed struct {
	url     string
	dialer  *websocket.Dialer
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	records map[string]Record

	connMu sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
}

type Option func(*Feed)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Feed) { f.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Feed) { f.metrics = m }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(f *Feed) { f.dialer = d }
}

// New constructs a feed client for the given websocket URL. Connect must be
// called before any records can appear.
func New(url string, opts ...Option) *Feed {
	f := &Feed{
		url:     url,
		dialer:  websocket.DefaultDialer,
		logger:  slog.Default(),
		records: make(map[string]Record),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Connect dials the feed and starts consuming frames until the connection
// fails or Close is called. Calling Connect on an already-connected feed is an
// error.
func (f *Feed) Connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn != nil {
		return errors.New("inventory feed already connected")
	}

	conn, resp, err := f.dialer.DialContext(ctx, f.url, nil)
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial inventory feed: %w", err)
	}

	f.conn = conn
	f.done = make(chan struct{})
	go f.readLoop(conn, f.done)
	return nil
}

// Close tears the connection down and waits for the read loop to exit, so the
// owner can rely on no further mapping mutations afterwards. Safe to call
// multiple times and before Connect.
func (f *Feed) Close() error {
	f.connMu.Lock()
	conn, done := f.conn, f.done
	f.conn, f.done = nil, nil
	f.connMu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	return err
}

// Lookup returns the record for a product and whether one is known.
func (f *Feed) Lookup(productID string) (Record, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.records[productID]
	return rec, ok
}

// Available returns the offerable quantity for a product. Unknown products
// have nothing offerable.
func (f *Feed) Available(productID string) int {
	rec, ok := f.Lookup(productID)
	if !ok {
		return 0
	}
	return rec.Available()
}

// Snapshot returns a copy of the current mapping.
func (f *Feed) Snapshot() map[string]Record {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]Record, len(f.records))
	for id, rec := range f.records {
		out[id] = rec
	}
	return out
}

func (f *Feed) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// An owner-initiated Close surfaces as a closed-connection read
			// error, not a websocket close frame.
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				f.logger.Warn("inventory feed read ended", "error", err)
			}
			return
		}
		f.apply(data)
	}
}

// apply merges one feed frame into the mapping. Bad frames are dropped, never
// propagated; the owning UI must not see feed errors.
func (f *Feed) apply(data []byte) {
	var updates []Record
	if err := json.Unmarshal(data, &updates); err != nil {
		f.logger.Warn("ignoring malformed inventory frame", "error", err)
		if f.metrics != nil {
			f.metrics.ObserveDroppedFrame()
		}
		return
	}

	if len(updates) == 0 {
		f.logger.Debug("ignoring empty inventory frame")
		if f.metrics != nil {
			f.metrics.ObserveDroppedFrame()
		}
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(updates) > 1 {
		// Full replacement: products absent from the frame are dropped.
		replaced := make(map[string]Record, len(updates))
		for _, rec := range updates {
			replaced[rec.ProductID] = rec
		}
		f.records = replaced
		if f.metrics != nil {
			f.metrics.ObserveBulkReplace(len(f.records))
		}
		return
	}

	rec := updates[0]
	f.records[rec.ProductID] = rec
	if f.metrics != nil {
		f.metrics.ObserveSingleUpdate(len(f.records))
	}
}
