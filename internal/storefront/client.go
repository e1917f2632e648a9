package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trolley/pkg/sentinel"
)

// CartItem is a cart line as the storefront API reports it, already mapped out
// of the wire encoding.
type CartItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     string
	ImageURL  string
}

// Client talks to the storefront REST API. One instance serves both guest
// calls (stock reserve/release) and authenticated cart calls; the bearer token
// is attached when present.
type Client struct {
	baseURL    string
	httpClient *http.Client

	tokenMu sync.RWMutex
	token   string

	// Collapses concurrent cart-ID lookups into one request.
	cartID singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient constructs a storefront API client rooted at baseURL
// (e.g. "http://localhost:8080/api").
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// SetToken installs the bearer token used for authenticated cart calls. An
// empty token reverts the client to guest-only calls.
func (c *Client) SetToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
}

// flexInt tolerates the backend emitting quantities as either numbers or
// numeric strings.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("quantity %q is not an integer: %w", s, err)
	}
	*n = flexInt(v)
	return nil
}

// nullString matches the backend's SQL null-string serialization.
type nullString struct {
	String string `json:"String"`
	Valid  bool   `json:"Valid"`
}

type wireCartItem struct {
	ProductID string     `json:"productID"`
	Name      string     `json:"productName"`
	Quantity  flexInt    `json:"quantity"`
	Price     string     `json:"price"`
	ImageURL  nullString `json:"imageUrl"`
}

func (w wireCartItem) domain() CartItem {
	return CartItem{
		ProductID: w.ProductID,
		Name:      w.Name,
		Quantity:  int(w.Quantity),
		Price:     w.Price,
		ImageURL:  w.ImageURL.String,
	}
}

type wireOrderItem struct {
	ProductID string `json:"productID"`
	Name      string `json:"product_name"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	ImageURL  string `json:"image_url"`
}

// CurrentCartID resolves the cart identifier bound to the authenticated
// session, creating a cart server-side if none exists yet. Concurrent callers
// share one request.
func (c *Client) CurrentCartID(ctx context.Context) (string, error) {
	v, err, _ := c.cartID.Do("current", func() (any, error) {
		var out struct {
			CartID string `json:"cartId"`
		}
		if err := c.do(ctx, http.MethodGet, "/carts/current", nil, &out); err != nil {
			return "", err
		}
		return out.CartID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// CartItems fetches the line items of a server-side cart.
func (c *Client) CartItems(ctx context.Context, cartID string) ([]CartItem, error) {
	var wire []wireCartItem
	if err := c.do(ctx, http.MethodGet, "/cart-items/"+cartID, nil, &wire); err != nil {
		return nil, err
	}
	items := make([]CartItem, 0, len(wire))
	for _, w := range wire {
		items = append(items, w.domain())
	}
	return items, nil
}

// SyncCart submits a whole guest cart in one batch and returns the canonical
// server cart.
func (c *Client) SyncCart(ctx context.Context, items []CartItem) ([]CartItem, error) {
	body := struct {
		OrderItems []wireOrderItem `json:"orderItems"`
	}{OrderItems: make([]wireOrderItem, 0, len(items))}
	for _, item := range items {
		body.OrderItems = append(body.OrderItems, wireOrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
			ImageURL:  item.ImageURL,
		})
	}

	var wire []wireCartItem
	if err := c.do(ctx, http.MethodPost, "/carts/sync", body, &wire); err != nil {
		return nil, err
	}
	synced := make([]CartItem, 0, len(wire))
	for _, w := range wire {
		synced = append(synced, w.domain())
	}
	return synced, nil
}

// AddCartItem upserts a line on the authenticated cart. Quantity is the merged
// absolute quantity, not a delta.
func (c *Client) AddCartItem(ctx context.Context, item CartItem) error {
	return c.do(ctx, http.MethodPost, "/cart-items/"+item.ProductID, wireOrderItem{
		ProductID: item.ProductID,
		Name:      item.Name,
		Quantity:  item.Quantity,
		Price:     item.Price,
		ImageURL:  item.ImageURL,
	}, nil)
}

// UpdateCartItem sets the absolute quantity of an existing line.
func (c *Client) UpdateCartItem(ctx context.Context, productID string, quantity int) error {
	body := struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}{ProductID: productID, Quantity: quantity}
	return c.do(ctx, http.MethodPut, "/cart-items/"+productID, body, nil)
}

// DeleteCartItem removes a line from the authenticated cart.
func (c *Client) DeleteCartItem(ctx context.Context, productID string, quantity int) error {
	body := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}
	return c.do(ctx, http.MethodDelete, "/cart-items/"+productID, body, nil)
}

// ReserveStock sets the guest session's outstanding reservation for a product.
// The value replaces the previous reservation wholesale.
func (c *Client) ReserveStock(ctx context.Context, productID string, reserved int) error {
	body := struct {
		ReservedStock int `json:"reservedStock"`
	}{ReservedStock: reserved}
	return c.do(ctx, http.MethodPut, "/inventory/reserve/"+productID, body, nil)
}

// ReleaseStock gives back a reserved quantity for a product.
func (c *Client) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	body := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}
	return c.do(ctx, http.MethodPut, "/inventory/release/"+productID, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.tokenMu.RLock()
	token := c.token
	c.tokenMu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, sentinel.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%s %s: status %s: %w", method, path, resp.Status, sentinel.ErrUnavailable)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
