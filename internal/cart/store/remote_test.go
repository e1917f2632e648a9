package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trolley/internal/cart/models"
	"trolley/internal/storefront"
	"trolley/pkg/sentinel"
)

func TestRemoteLoadResolvesCartThenFetchesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/carts/current":
			_ = json.NewEncoder(w).Encode(map[string]string{"cartId": "cart-42"})
		case "/cart-items/cart-42":
			_, _ = w.Write([]byte(`[
				{"productID":"p1","productName":"Widget","quantity":"2","price":"19.99","imageUrl":{"String":"/img/w.png","Valid":true}},
				{"productID":"p2","productName":"Gadget","quantity":1,"price":"5.00","imageUrl":{"String":"","Valid":false}}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	remote := NewRemote(storefront.NewClient(srv.URL, 5*time.Second))
	lines, err := remote.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.Line{
		{ProductID: "p1", Quantity: 2, UnitPrice: "19.99", Name: "Widget", ImageURL: "/img/w.png"},
		{ProductID: "p2", Quantity: 1, UnitPrice: "5.00", Name: "Gadget"},
	}, lines)
}

func TestRemoteLoadCartResolutionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	remote := NewRemote(storefront.NewClient(srv.URL, 5*time.Second))
	_, err := remote.Load(context.Background())
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestRemoteMutationsHitCartItemEndpoints(t *testing.T) {
	type call struct {
		method, path string
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	remote := NewRemote(storefront.NewClient(srv.URL, 5*time.Second))
	ctx := context.Background()

	require.NoError(t, remote.Add(ctx, models.Line{ProductID: "p1", Quantity: 2, UnitPrice: "19.99"}, nil))
	require.NoError(t, remote.Update(ctx, "p1", 5, nil))
	require.NoError(t, remote.Remove(ctx, "p1", 5, nil))

	assert.Equal(t, []call{
		{http.MethodPost, "/cart-items/p1"},
		{http.MethodPut, "/cart-items/p1"},
		{http.MethodDelete, "/cart-items/p1"},
	}, calls)
}

func TestRemoteClearIsUnsupported(t *testing.T) {
	remote := NewRemote(storefront.NewClient("http://unused", time.Second))
	assert.ErrorIs(t, remote.Clear(context.Background()), sentinel.ErrUnsupported)
}
