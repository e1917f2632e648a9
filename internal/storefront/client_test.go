package storefront

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trolley/pkg/sentinel"
)

func TestCartItemsDecodesBackendEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cart-items/cart-1", r.URL.Path)
		// Quantities arrive as strings and image URLs as SQL null strings.
		_, _ = w.Write([]byte(`[
			{"productID":"p1","productName":"Widget","quantity":"3","price":"19.99","imageUrl":{"String":"/img/w.png","Valid":true}},
			{"productID":"p2","productName":"Gadget","quantity":1,"price":"5.00","imageUrl":{"String":"","Valid":false}}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	items, err := client.CartItems(t.Context(), "cart-1")
	require.NoError(t, err)

	assert.Equal(t, []CartItem{
		{ProductID: "p1", Name: "Widget", Quantity: 3, Price: "19.99", ImageURL: "/img/w.png"},
		{ProductID: "p2", Name: "Gadget", Quantity: 1, Price: "5.00"},
	}, items)
}

func TestCartItemsRejectsNonNumericQuantity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"productID":"p1","quantity":"lots"}]`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 5*time.Second).CartItems(t.Context(), "cart-1")
	assert.Error(t, err)
}

func TestSyncCartSendsOrderItemEncoding(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/carts/sync", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.SyncCart(t.Context(), []CartItem{
		{ProductID: "p1", Name: "Widget", Quantity: 2, Price: "19.99", ImageURL: "/img/w.png"},
	})
	require.NoError(t, err)

	// The request encoding is snake_case, unlike the response.
	items, ok := got["orderItems"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "p1", item["productID"])
	assert.Equal(t, "Widget", item["product_name"])
	assert.EqualValues(t, 2, item["quantity"])
	assert.Equal(t, "19.99", item["price"])
	assert.Equal(t, "/img/w.png", item["image_url"])
}

func TestBearerTokenAttachedOnlyWhenSet(t *testing.T) {
	var header atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)

	require.NoError(t, client.ReserveStock(t.Context(), "p1", 1))
	assert.Empty(t, header.Load())

	client.SetToken("tok-123")
	require.NoError(t, client.ReserveStock(t.Context(), "p1", 1))
	assert.Equal(t, "Bearer tok-123", header.Load())

	client.SetToken("")
	require.NoError(t, client.ReserveStock(t.Context(), "p1", 1))
	assert.Empty(t, header.Load())
}

func TestStatusCodesMapToSentinels(t *testing.T) {
	var status atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)

	status.Store(http.StatusNotFound)
	err := client.UpdateCartItem(t.Context(), "p1", 2)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	status.Store(http.StatusConflict)
	err = client.UpdateCartItem(t.Context(), "p1", 2)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	status.Store(http.StatusInternalServerError)
	err = client.UpdateCartItem(t.Context(), "p1", 2)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestCurrentCartIDCollapsesConcurrentLookups(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]string{"cartId": "cart-1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)

	var wg sync.WaitGroup
	ids := make([]string, 4)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := client.CurrentCartID(t.Context())
			assert.NoError(t, err)
			ids[i] = id
		}()
	}

	// Let all goroutines pile onto the in-flight request before releasing it.
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, id := range ids {
		assert.Equal(t, "cart-1", id)
	}
}
