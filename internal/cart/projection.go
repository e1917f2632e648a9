package cart

import (
	"trolley/internal/cart/models"

	"github.com/google/uuid"
)

// mutationKind is the tag of the pending-mutation sum type.
type mutationKind string

const (
	mutationAdd    mutationKind = "add"
	mutationUpdate mutationKind = "update"
	mutationRemove mutationKind = "remove"
	mutationClear  mutationKind = "clear"
)

// mutation is one not-yet-confirmed cart change. Mutations are ephemeral:
// they exist only between submission and resolution of the matching remote
// call, and carry just enough payload to project an optimistic cart.
type mutation struct {
	id   uuid.UUID
	kind mutationKind

	// add carries the full line with Quantity as the requested delta;
	// update carries productID plus the absolute quantity;
	// remove carries only productID.
	line      models.Line
	productID string
	quantity  int
}

// project derives the rendered cart from the authoritative cart plus the
// ordered pending mutations. It is a pure function: recomputed from scratch on
// every read, so resolved mutations leave no drift behind regardless of the
// order their remote calls complete in.
func project(base []models.Line, pending []mutation) []models.Line {
	out := make([]models.Line, len(base))
	copy(out, base)

	for _, m := range pending {
		switch m.kind {
		case mutationAdd:
			if existing, ok := models.Find(out, m.line.ProductID); ok {
				out = models.SetQuantity(out, m.line.ProductID, existing.Quantity+m.line.Quantity)
				continue
			}
			out = append(out, m.line)
		case mutationUpdate:
			out = models.SetQuantity(out, m.productID, m.quantity)
		case mutationRemove:
			out = models.Without(out, m.productID)
		case mutationClear:
			out = out[:0]
		}
	}
	return out
}
