package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"trolley/internal/cart/metrics"
	"trolley/internal/cart/models"
	"trolley/internal/cart/store"
	"trolley/internal/storefront"
)

var (
	// ErrInsufficientStock rejects a mutation before any state change; the
	// caller surfaces it as a user-facing warning.
	ErrInsufficientStock = errors.New("not enough stock available")
	// ErrNotGuestSession guards guest-only operations while a server cart is
	// active.
	ErrNotGuestSession = errors.New("cart is server-managed for this session")
)

// StockChecker answers how much of a product is still offerable. The
// inventory feed is the production implementation.
type StockChecker interface {
	Available(productID string) int
}

// Engine is the source of truth for the shopper's cart. It validates
// mutations against live inventory, projects them optimistically for
// rendering, performs the session-appropriate remote effect, and reconciles
// authoritative state from the outcome.
//
// Authoritative state has a single writer: the reconciliation step inside each
// operation. Readers get either the optimistic projection (Lines) or the
// confirmed cart (AuthoritativeLines).
type Engine struct {
	stock   StockChecker
	client  *storefront.Client
	guest   *store.Guest
	remote  *store.Remote
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	lines       []models.Line
	pending     []mutation
	persistence store.Persistence
	sessionKey  string
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine constructs the cart engine. The engine starts with an empty guest
// cart; call SetSession to load persisted state and to react to login state.
func NewEngine(stock StockChecker, client *storefront.Client, storage store.GuestStorage, opts ...Option) *Engine {
	e := &Engine{
		stock:  stock,
		client: client,
		remote: store.NewRemote(client),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.guest = store.NewGuest(client, storage, e.logger)
	e.persistence = e.guest
	return e
}

// Lines returns the cart as it should render right now: authoritative state
// with all still-pending mutations applied in submission order.
func (e *Engine) Lines() []models.Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	return project(e.lines, e.pending)
}

// AuthoritativeLines returns only the confirmed cart state.
func (e *Engine) AuthoritativeLines() []models.Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Line, len(e.lines))
	copy(out, e.lines)
	return out
}

// AddItem adds quantity of a product to the cart, merging with any existing
// line. It fails fast with ErrInsufficientStock before any state change or
// remote call when the requested quantity exceeds what the feed says is
// offerable.
func (e *Engine) AddItem(ctx context.Context, productID string, quantity int, unitPrice, name, imageURL string) error {
	if quantity < 1 {
		return nil
	}
	if quantity > e.stock.Available(productID) {
		if e.metrics != nil {
			e.metrics.IncrementStockRejections()
		}
		return ErrInsufficientStock
	}

	e.mu.Lock()
	existing, _ := models.Find(e.lines, productID)
	merged := models.Line{
		ProductID: productID,
		Quantity:  existing.Quantity + quantity,
		UnitPrice: unitPrice,
		Name:      name,
		ImageURL:  imageURL,
	}
	m := mutation{
		id:   uuid.New(),
		kind: mutationAdd,
		line: models.Line{ProductID: productID, Quantity: quantity, UnitPrice: unitPrice, Name: name, ImageURL: imageURL},
	}
	e.pending = append(e.pending, m)
	after := models.Upsert(e.lines, merged)
	persistence, sessionKey := e.persistence, e.sessionKey
	e.mu.Unlock()

	err := persistence.Add(ctx, merged, after)

	e.mu.Lock()
	e.dropPending(m.id)
	if err == nil && e.sessionKey == sessionKey {
		e.lines = models.Upsert(e.lines, merged)
	}
	e.mu.Unlock()

	e.observeMutation("add", err == nil)
	if err != nil {
		e.logger.Error("adding item to cart failed", "product_id", productID, "error", err)
		return fmt.Errorf("add to cart: %w", err)
	}
	return nil
}

// UpdateQuantity sets the absolute quantity of a cart line. Quantities below 1
// are a no-op; quantities above the offerable stock are rejected without any
// state change.
func (e *Engine) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return nil
	}
	if quantity > e.stock.Available(productID) {
		if e.metrics != nil {
			e.metrics.IncrementStockRejections()
		}
		return ErrInsufficientStock
	}

	e.mu.Lock()
	m := mutation{id: uuid.New(), kind: mutationUpdate, productID: productID, quantity: quantity}
	e.pending = append(e.pending, m)
	after := models.SetQuantity(e.lines, productID, quantity)
	persistence, sessionKey := e.persistence, e.sessionKey
	e.mu.Unlock()

	err := persistence.Update(ctx, productID, quantity, after)

	e.mu.Lock()
	e.dropPending(m.id)
	if err == nil && e.sessionKey == sessionKey {
		e.lines = models.SetQuantity(e.lines, productID, quantity)
	}
	e.mu.Unlock()

	e.observeMutation("update", err == nil)
	if err != nil {
		e.logger.Error("updating cart item failed", "product_id", productID, "error", err)
		return fmt.Errorf("update cart item: %w", err)
	}
	return nil
}

// RemoveItem deletes a cart line. No stock check applies: giving a
// reservation back cannot exceed bounds. Removing an absent product is a
// no-op. Remote failure is logged, not surfaced, and the authoritative line
// survives; the client and server may disagree until the next load.
func (e *Engine) RemoveItem(ctx context.Context, productID string, quantity int) error {
	e.mu.Lock()
	if _, ok := models.Find(e.lines, productID); !ok {
		e.mu.Unlock()
		return nil
	}
	m := mutation{id: uuid.New(), kind: mutationRemove, productID: productID}
	e.pending = append(e.pending, m)
	after := models.Without(e.lines, productID)
	persistence, sessionKey := e.persistence, e.sessionKey
	e.mu.Unlock()

	err := persistence.Remove(ctx, productID, quantity, after)

	e.mu.Lock()
	e.dropPending(m.id)
	if err == nil && e.sessionKey == sessionKey {
		e.lines = models.Without(e.lines, productID)
	}
	e.mu.Unlock()

	e.observeMutation("remove", err == nil)
	if err != nil {
		e.logger.Error("removing cart item failed", "product_id", productID, "error", err)
	}
	return nil
}

// ClearGuestCart wipes the guest cart: optimistic state, authoritative state,
// and the persisted entry. It is synchronous and local apart from erasing
// storage, and refuses to run while a server cart is active.
func (e *Engine) ClearGuestCart(ctx context.Context) error {
	e.mu.Lock()
	if e.authenticated() {
		e.mu.Unlock()
		return ErrNotGuestSession
	}
	e.lines = nil
	e.pending = nil
	e.mu.Unlock()

	e.observeMutation("clear", true)
	if err := e.guest.Clear(ctx); err != nil {
		e.logger.Error("erasing guest cart storage failed", "error", err)
		return fmt.Errorf("clear guest cart: %w", err)
	}
	return nil
}

// dropPending removes one resolved mutation. Callers hold e.mu.
func (e *Engine) dropPending(id uuid.UUID) {
	for i, m := range e.pending {
		if m.id == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// authenticated reports whether the active session has a server identity.
// Callers hold e.mu.
func (e *Engine) authenticated() bool {
	return e.sessionKey != "" && e.sessionKey != guestSessionKey
}

func (e *Engine) observeMutation(kind string, confirmed bool) {
	if e.metrics != nil {
		e.metrics.ObserveMutation(kind, confirmed)
	}
}
