package store

import (
	"context"

	"trolley/internal/cart/models"
	"trolley/internal/storefront"
)

// Persistence is the session-appropriate backing for cart mutations. The
// engine selects one variant per session transition instead of branching on
// authentication state inside every operation.
//
// Mutating calls receive both the affected line and the full post-mutation
// cart, because the guest variant writes the whole cart through to durable
// storage while the remote variant only ships the delta.
type Persistence interface {
	// Load returns the cart this persistence currently holds.
	Load(ctx context.Context) ([]models.Line, error)
	// Add records a line at its merged absolute quantity.
	Add(ctx context.Context, line models.Line, cart []models.Line) error
	// Update sets the absolute quantity of an existing line.
	Update(ctx context.Context, productID string, quantity int, cart []models.Line) error
	// Remove deletes a line; quantity is the amount being given back.
	Remove(ctx context.Context, productID string, quantity int, cart []models.Line) error
	// Clear erases everything this persistence holds.
	Clear(ctx context.Context) error
}

// GuestStorage is the durable local home of an unauthenticated cart. A single
// namespaced entry holds the serialized lines; an absent entry reads as an
// empty cart.
type GuestStorage interface {
	Read(ctx context.Context) ([]models.Line, error)
	Write(ctx context.Context, cart []models.Line) error
	Delete(ctx context.Context) error
}

// ToItems maps cart lines onto the storefront API shape.
func ToItems(cart []models.Line) []storefront.CartItem {
	items := make([]storefront.CartItem, 0, len(cart))
	for _, l := range cart {
		items = append(items, storefront.CartItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
			ImageURL:  l.ImageURL,
		})
	}
	return items
}

// FromItems maps storefront API items into cart lines.
func FromItems(items []storefront.CartItem) []models.Line {
	cart := make([]models.Line, 0, len(items))
	for _, item := range items {
		cart = append(cart, models.Line{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			ImageURL:  item.ImageURL,
		})
	}
	return cart
}
