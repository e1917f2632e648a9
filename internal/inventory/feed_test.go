package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAvailable(t *testing.T) {
	assert.Equal(t, 8, Record{Stock: 10, ReservedStock: 2}.Available())
	assert.Equal(t, 0, Record{Stock: 2, ReservedStock: 2}.Available())
	assert.Equal(t, 0, Record{Stock: 1, ReservedStock: 5}.Available())
}

func TestApplyFrameSemantics(t *testing.T) {
	frame := func(records ...Record) []byte {
		data, err := json.Marshal(records)
		require.NoError(t, err)
		return data
	}

	t.Run("bulk replace then single merge", func(t *testing.T) {
		f := New("ws://unused")
		f.apply(frame(
			Record{ProductID: "p1", Stock: 10, ReservedStock: 2},
			Record{ProductID: "p2", Stock: 5, ReservedStock: 0},
		))
		f.apply(frame(Record{ProductID: "p1", Stock: 10, ReservedStock: 5}))

		assert.Equal(t, map[string]Record{
			"p1": {ProductID: "p1", Stock: 10, ReservedStock: 5},
			"p2": {ProductID: "p2", Stock: 5, ReservedStock: 0},
		}, f.Snapshot())
	})

	t.Run("bulk replace drops absent products", func(t *testing.T) {
		f := New("ws://unused")
		f.apply(frame(
			Record{ProductID: "p1", Stock: 1},
			Record{ProductID: "p2", Stock: 2},
		))
		f.apply(frame(
			Record{ProductID: "p2", Stock: 3},
			Record{ProductID: "p3", Stock: 4},
		))

		_, ok := f.Lookup("p1")
		assert.False(t, ok)
		assert.Equal(t, 3, f.Available("p2"))
		assert.Equal(t, 4, f.Available("p3"))
	})

	t.Run("single update inserts unknown product", func(t *testing.T) {
		f := New("ws://unused")
		f.apply(frame(Record{ProductID: "p9", Stock: 7, ReservedStock: 1}))
		assert.Equal(t, 6, f.Available("p9"))
	})

	t.Run("empty frame is a no-op", func(t *testing.T) {
		f := New("ws://unused")
		f.apply(frame(Record{ProductID: "p1", Stock: 3}))
		f.apply([]byte(`[]`))
		assert.Equal(t, 3, f.Available("p1"))
	})

	t.Run("malformed frame is a no-op", func(t *testing.T) {
		f := New("ws://unused")
		f.apply(frame(Record{ProductID: "p1", Stock: 3}))
		f.apply([]byte(`{"not":"an array"}`))
		f.apply([]byte(`garbage`))
		assert.Equal(t, 3, f.Available("p1"))
	})
}

func TestAvailableUnknownProduct(t *testing.T) {
	f := New("ws://unused")
	assert.Equal(t, 0, f.Available("nope"))
}

var upgrader = websocket.Upgrader{}

func feedServer(t *testing.T, frames ...any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestFeedOverWebSocket(t *testing.T) {
	srv := feedServer(t,
		[]Record{
			{ProductID: "p1", Stock: 10, ReservedStock: 2},
			{ProductID: "p2", Stock: 5, ReservedStock: 0},
		},
		[]Record{{ProductID: "p1", Stock: 10, ReservedStock: 5}},
	)
	defer srv.Close()

	f := New(wsURL(srv.URL))
	require.NoError(t, f.Connect(context.Background()))
	defer f.Close()

	require.Eventually(t, func() bool {
		rec, ok := f.Lookup("p1")
		return ok && rec.ReservedStock == 5
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 5, f.Available("p2"))
	assert.Equal(t, 5, f.Available("p1"))
}

func TestConnectTwiceFails(t *testing.T) {
	srv := feedServer(t)
	defer srv.Close()

	f := New(wsURL(srv.URL))
	require.NoError(t, f.Connect(context.Background()))
	defer f.Close()

	assert.Error(t, f.Connect(context.Background()))
}

func TestCloseIsDeterministicAndIdempotent(t *testing.T) {
	srv := feedServer(t, []Record{{ProductID: "p1", Stock: 1}, {ProductID: "p2", Stock: 1}})
	defer srv.Close()

	f := New(wsURL(srv.URL))

	// Close before Connect is a no-op.
	require.NoError(t, f.Close())

	require.NoError(t, f.Connect(context.Background()))
	require.Eventually(t, func() bool {
		_, ok := f.Lookup("p1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	snapshot := f.Snapshot()
	_ = f.Close()
	_ = f.Close()

	// After Close returns the read loop has exited; the mapping is frozen.
	assert.Equal(t, snapshot, f.Snapshot())

	// A closed feed can be reconnected by its owner if it chooses to.
	require.NoError(t, f.Connect(context.Background()))
	_ = f.Close()
}

func TestCloseDoesNotLogReadWarning(t *testing.T) {
	srv := feedServer(t, []Record{{ProductID: "p1", Stock: 1}})
	defer srv.Close()

	var buf bytes.Buffer
	f := New(wsURL(srv.URL), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, f.Connect(context.Background()))
	require.Eventually(t, func() bool {
		_, ok := f.Lookup("p1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// Close waits for the read loop, so the buffer is quiet afterwards.
	require.NoError(t, f.Close())
	assert.NotContains(t, buf.String(), "inventory feed read ended")
}

func TestConnectBadURL(t *testing.T) {
	f := New("ws://127.0.0.1:1/ws/inventory")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	assert.Error(t, f.Connect(ctx))
}
