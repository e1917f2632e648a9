package store

import (
	"context"
	"fmt"

	"trolley/internal/cart/models"
	"trolley/internal/storefront"
	"trolley/pkg/sentinel"
)

// Remote is the authenticated variant: the server tracks the cart under a
// session-bound cart identifier and every mutation ships as its own call.
type Remote struct {
	client *storefront.Client
}

func NewRemote(client *storefront.Client) *Remote {
	return &Remote{client: client}
}

func (r *Remote) Load(ctx context.Context) ([]models.Line, error) {
	cartID, err := r.client.CurrentCartID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve cart id: %w", err)
	}
	items, err := r.client.CartItems(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("fetch cart items: %w", err)
	}
	return FromItems(items), nil
}

func (r *Remote) Add(ctx context.Context, line models.Line, _ []models.Line) error {
	return r.client.AddCartItem(ctx, storefront.CartItem{
		ProductID: line.ProductID,
		Name:      line.Name,
		Quantity:  line.Quantity,
		Price:     line.UnitPrice,
		ImageURL:  line.ImageURL,
	})
}

func (r *Remote) Update(ctx context.Context, productID string, quantity int, _ []models.Line) error {
	return r.client.UpdateCartItem(ctx, productID, quantity)
}

func (r *Remote) Remove(ctx context.Context, productID string, quantity int, _ []models.Line) error {
	return r.client.DeleteCartItem(ctx, productID, quantity)
}

// Clear is a guest-only operation; the server cart has no wholesale delete.
func (r *Remote) Clear(context.Context) error {
	return sentinel.ErrUnsupported
}
