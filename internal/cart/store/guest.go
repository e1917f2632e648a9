package store

import (
	"context"
	"fmt"
	"log/slog"

	"trolley/internal/cart/models"
	"trolley/internal/storefront"
)

// Guest persists the cart locally and holds stock server-side through the
// guest reservation endpoints. Reservations are set wholesale: the reserved
// quantity for a product is this session's full line quantity, not a delta.
type Guest struct {
	client  *storefront.Client
	storage GuestStorage
	logger  *slog.Logger
}

func NewGuest(client *storefront.Client, storage GuestStorage, logger *slog.Logger) *Guest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guest{client: client, storage: storage, logger: logger}
}

func (g *Guest) Load(ctx context.Context) ([]models.Line, error) {
	return g.storage.Read(ctx)
}

func (g *Guest) Add(ctx context.Context, line models.Line, cart []models.Line) error {
	if err := g.client.ReserveStock(ctx, line.ProductID, line.Quantity); err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	return g.storage.Write(ctx, cart)
}

func (g *Guest) Update(ctx context.Context, productID string, quantity int, cart []models.Line) error {
	if err := g.client.ReserveStock(ctx, productID, quantity); err != nil {
		return fmt.Errorf("update stock reservation: %w", err)
	}
	return g.storage.Write(ctx, cart)
}

// Remove gives the reservation back and persists the shrunken cart. A failed
// release is logged but does not keep the line in the cart; the local removal
// wins and the server-side reservation may leak until it expires.
func (g *Guest) Remove(ctx context.Context, productID string, quantity int, cart []models.Line) error {
	if err := g.client.ReleaseStock(ctx, productID, quantity); err != nil {
		g.logger.Error("releasing guest stock failed", "product_id", productID, "error", err)
	}
	return g.storage.Write(ctx, cart)
}

func (g *Guest) Clear(ctx context.Context) error {
	return g.storage.Delete(ctx)
}
