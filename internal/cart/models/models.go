package models

// Line is one product entry in a cart. A cart holds at most one Line per
// product; quantity is always at least 1, removal deletes the line outright.
// The JSON tags match the persisted guest-cart encoding.
type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"price"`
	Name      string `json:"name"`
	ImageURL  string `json:"imageUrl"`
}

// Upsert returns cart with line replacing any existing entry for the same
// product. The input slice is not modified.
func Upsert(cart []Line, line Line) []Line {
	out := make([]Line, 0, len(cart)+1)
	for _, l := range cart {
		if l.ProductID != line.ProductID {
			out = append(out, l)
		}
	}
	return append(out, line)
}

// SetQuantity returns cart with the matching line's quantity set to quantity.
// A cart without the product comes back unchanged (copied).
func SetQuantity(cart []Line, productID string, quantity int) []Line {
	out := make([]Line, len(cart))
	for i, l := range cart {
		if l.ProductID == productID {
			l.Quantity = quantity
		}
		out[i] = l
	}
	return out
}

// Without returns cart with any line for productID removed.
func Without(cart []Line, productID string) []Line {
	out := make([]Line, 0, len(cart))
	for _, l := range cart {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	return out
}

// Find returns the line for productID and whether it exists.
func Find(cart []Line, productID string) (Line, bool) {
	for _, l := range cart {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}
