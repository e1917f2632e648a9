// Package simulator implements the storefront backend boundary the cart
// engine talks to: the REST cart and reservation endpoints plus the WebSocket
// inventory feed, all over in-memory state. Integration tests run against it
// and cmd/shopd serves it for local development. It implements the boundary
// contract only, not real inventory accounting.
package simulator

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Product seeds one sellable product.
type Product struct {
	ID       string
	Name     string
	Price    string
	ImageURL string
	Stock    int
	Reserved int
}

type productState struct {
	name     string
	price    string
	imageURL string
	stock    int
	reserved int
}

type cartLine struct {
	productID string
	name      string
	quantity  int
	price     string
	imageURL  string
}

// Simulator is an in-memory storefront backend.
type Simulator struct {
	logger   *slog.Logger
	hub      *hub
	upgrader websocket.Upgrader

	mu        sync.Mutex
	inventory map[string]*productState
	carts     map[string]map[string]cartLine // cartID -> productID -> line
	cartIDs   map[string]string              // session subject -> cartID
}

type Option func(*Simulator)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

func New(opts ...Option) *Simulator {
	s := &Simulator{
		logger:    slog.Default(),
		inventory: make(map[string]*productState),
		carts:     make(map[string]map[string]cartLine),
		cartIDs:   make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.hub = newHub(s.logger)
	return s
}

// Seed installs products, replacing any prior state for the same IDs, and
// pushes the full inventory to feed subscribers.
func (s *Simulator) Seed(products ...Product) {
	s.mu.Lock()
	for _, p := range products {
		s.inventory[p.ID] = &productState{
			name:     p.Name,
			price:    p.Price,
			imageURL: p.ImageURL,
			stock:    p.Stock,
			reserved: p.Reserved,
		}
	}
	frame := s.fullInventoryLocked()
	s.mu.Unlock()

	s.hub.broadcast(frame)
}

// Handler returns the HTTP surface: REST under /api, the feed at
// /ws/inventory.
func (s *Simulator) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/carts/current", s.handleCurrentCart)
		r.Post("/carts/sync", s.handleSyncCart)
		r.Get("/cart-items/{cartID}", s.handleCartItems)
		r.Post("/cart-items/{productID}", s.handleAddCartItem)
		r.Put("/cart-items/{productID}", s.handleUpdateCartItem)
		r.Delete("/cart-items/{productID}", s.handleDeleteCartItem)
		r.Put("/inventory/reserve/{productID}", s.handleReserve)
		r.Put("/inventory/release/{productID}", s.handleRelease)
	})
	r.Get("/ws/inventory", s.handleFeed)
	return r
}

// Close drops all feed subscribers.
func (s *Simulator) Close() {
	s.hub.closeAll()
}

// Inventory returns the current stock position of one product, for test
// assertions.
func (s *Simulator) Inventory(productID string) (stock, reserved int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.inventory[productID]
	if !ok {
		return 0, 0, false
	}
	return state.stock, state.reserved, true
}

type inventoryRecord struct {
	ProductID     string `json:"productId"`
	Stock         int    `json:"stock"`
	ReservedStock int    `json:"reservedStock"`
}

func (s *Simulator) fullInventoryLocked() []inventoryRecord {
	frame := make([]inventoryRecord, 0, len(s.inventory))
	for id, state := range s.inventory {
		frame = append(frame, inventoryRecord{ProductID: id, Stock: state.stock, ReservedStock: state.reserved})
	}
	return frame
}

func (s *Simulator) recordLocked(productID string) inventoryRecord {
	state := s.inventory[productID]
	return inventoryRecord{ProductID: productID, Stock: state.stock, ReservedStock: state.reserved}
}

// broadcastProduct pushes a single-record merge frame for one product.
func (s *Simulator) broadcastProduct(productID string) {
	s.mu.Lock()
	if _, ok := s.inventory[productID]; !ok {
		s.mu.Unlock()
		return
	}
	frame := []inventoryRecord{s.recordLocked(productID)}
	s.mu.Unlock()
	s.hub.broadcast(frame)
}

func (s *Simulator) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("feed upgrade failed", "error", err)
		return
	}
	sub := s.hub.add(conn)

	s.mu.Lock()
	frame := s.fullInventoryLocked()
	s.mu.Unlock()
	if err := s.hub.sendTo(sub, frame); err != nil {
		s.hub.remove(sub)
		return
	}

	// Reads only serve to notice the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.remove(sub)
				return
			}
		}
	}()
}

// subject extracts the session identity from the bearer token. The simulator
// trusts tokens the way the real backend trusts its own cookies; it only
// needs a stable identity key.
func (s *Simulator) subject(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", false
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

func (s *Simulator) cartIDForLocked(subject string) string {
	if id, ok := s.cartIDs[subject]; ok {
		return id
	}
	id := uuid.NewString()
	s.cartIDs[subject] = id
	s.carts[id] = make(map[string]cartLine)
	return id
}

type wireNullString struct {
	String string `json:"String"`
	Valid  bool   `json:"Valid"`
}

type wireCartItem struct {
	ProductID string         `json:"productID"`
	Name      string         `json:"productName"`
	Quantity  int            `json:"quantity"`
	Price     string         `json:"price"`
	ImageURL  wireNullString `json:"imageUrl"`
}

func cartItemsLocked(cart map[string]cartLine) []wireCartItem {
	items := make([]wireCartItem, 0, len(cart))
	for _, line := range cart {
		items = append(items, wireCartItem{
			ProductID: line.productID,
			Name:      line.name,
			Quantity:  line.quantity,
			Price:     line.price,
			ImageURL:  wireNullString{String: line.imageURL, Valid: line.imageURL != ""},
		})
	}
	return items
}

func (s *Simulator) handleCurrentCart(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.subject(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	cartID := s.cartIDForLocked(subject)
	s.mu.Unlock()

	writeJSON(w, map[string]string{"cartId": cartID})
}

func (s *Simulator) handleCartItems(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")

	s.mu.Lock()
	cart, ok := s.carts[cartID]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "cart not found", http.StatusNotFound)
		return
	}
	items := cartItemsLocked(cart)
	s.mu.Unlock()

	writeJSON(w, items)
}

type wireOrderItem struct {
	ProductID string `json:"productID"`
	Name      string `json:"product_name"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	ImageURL  string `json:"image_url"`
}

func (s *Simulator) handleSyncCart(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.subject(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body struct {
		OrderItems []wireOrderItem `json:"orderItems"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	touched := make([]string, 0, len(body.OrderItems))
	s.mu.Lock()
	cartID := s.cartIDForLocked(subject)
	cart := s.carts[cartID]
	for _, item := range body.OrderItems {
		prev := cart[item.ProductID].quantity
		cart[item.ProductID] = cartLine{
			productID: item.ProductID,
			name:      item.Name,
			quantity:  prev + item.Quantity,
			price:     item.Price,
			imageURL:  item.ImageURL,
		}
		s.adjustReservedLocked(item.ProductID, item.Quantity)
		touched = append(touched, item.ProductID)
	}
	items := cartItemsLocked(cart)
	s.mu.Unlock()

	for _, productID := range touched {
		s.broadcastProduct(productID)
	}
	writeJSON(w, items)
}

func (s *Simulator) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	s.upsertCartItem(w, r, true)
}

func (s *Simulator) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	s.upsertCartItem(w, r, false)
}

// upsertCartItem handles both POST (full line payload) and PUT (quantity
// only). Quantity is absolute in both cases; the per-product reservation
// moves by the delta against the previous line.
func (s *Simulator) upsertCartItem(w http.ResponseWriter, r *http.Request, withPayload bool) {
	subject, ok := s.subject(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	productID := chi.URLParam(r, "productID")

	var body wireOrderItem
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if body.Quantity < 1 {
		http.Error(w, "quantity must be positive", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	state, known := s.inventory[productID]
	if !known {
		s.mu.Unlock()
		http.Error(w, "unknown product", http.StatusNotFound)
		return
	}
	cartID := s.cartIDForLocked(subject)
	cart := s.carts[cartID]
	prev, exists := cart[productID]
	if !withPayload && !exists {
		s.mu.Unlock()
		http.Error(w, "cart item not found", http.StatusNotFound)
		return
	}

	delta := body.Quantity - prev.quantity
	if delta > state.stock-state.reserved {
		s.mu.Unlock()
		http.Error(w, "insufficient stock", http.StatusConflict)
		return
	}

	line := cartLine{
		productID: productID,
		name:      body.Name,
		quantity:  body.Quantity,
		price:     body.Price,
		imageURL:  body.ImageURL,
	}
	if !withPayload {
		line.name, line.price, line.imageURL = prev.name, prev.price, prev.imageURL
	}
	cart[productID] = line
	s.adjustReservedLocked(productID, delta)
	s.mu.Unlock()

	s.broadcastProduct(productID)
	w.WriteHeader(http.StatusOK)
}

func (s *Simulator) handleDeleteCartItem(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.subject(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	productID := chi.URLParam(r, "productID")

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	cartID := s.cartIDForLocked(subject)
	delete(s.carts[cartID], productID)
	s.adjustReservedLocked(productID, -body.Quantity)
	s.mu.Unlock()

	s.broadcastProduct(productID)
	w.WriteHeader(http.StatusOK)
}

// handleReserve sets the shared guest reservation for a product wholesale.
// Concurrent guest sessions overwrite each other here; that limitation is
// part of the boundary contract, not something the simulator papers over.
func (s *Simulator) handleReserve(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var body struct {
		ReservedStock int `json:"reservedStock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ReservedStock < 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	state, ok := s.inventory[productID]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "unknown product", http.StatusNotFound)
		return
	}
	if body.ReservedStock > state.stock {
		s.mu.Unlock()
		http.Error(w, "insufficient stock", http.StatusConflict)
		return
	}
	state.reserved = body.ReservedStock
	s.mu.Unlock()

	s.broadcastProduct(productID)
	w.WriteHeader(http.StatusOK)
}

func (s *Simulator) handleRelease(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Quantity < 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if _, ok := s.inventory[productID]; !ok {
		s.mu.Unlock()
		http.Error(w, "unknown product", http.StatusNotFound)
		return
	}
	s.adjustReservedLocked(productID, -body.Quantity)
	s.mu.Unlock()

	s.broadcastProduct(productID)
	w.WriteHeader(http.StatusOK)
}

// adjustReservedLocked moves a product's reservation by delta, clamped at
// zero. Callers hold s.mu.
func (s *Simulator) adjustReservedLocked(productID string, delta int) {
	state, ok := s.inventory[productID]
	if !ok {
		return
	}
	state.reserved += delta
	if state.reserved < 0 {
		state.reserved = 0
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
