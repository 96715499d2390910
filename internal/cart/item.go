// Package cart holds the shopping-cart session engine: the item model, the
// owner-regime dispatch, the state container exposed to handlers, and the
// guest-to-account migration that runs on login.
package cart

// Item is one line of a cart. Name, UnitPrice and ImageURL are snapshots
// captured when the line was added; they are not re-validated against the
// catalog afterwards. UnitPrice is in minor currency units.
type Item struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int32  `json:"quantity"`
	ImageURL  string `json:"imageUrl"`
}

// OwnerMode says which store is authoritative for a cart.
type OwnerMode string

const (
	OwnerGuest         OwnerMode = "guest"
	OwnerAuthenticated OwnerMode = "authenticated"
)

// GuestCartID is the sentinel id for carts that live in the guest session
// store and have no server-assigned identifier yet.
const GuestCartID = "guest"

// Cart is a snapshot of one cart. Total is always derived from the lines;
// it is never stored independently.
type Cart struct {
	OwnerMode OwnerMode `json:"ownerMode"`
	ID        string    `json:"id"`
	Items     []Item    `json:"items"`
}

// Total returns the sum of line subtotals.
func (c Cart) Total() int64 {
	return Subtotal(c.Items)
}

// Subtotal sums unitPrice x quantity over the given lines.
func Subtotal(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total
}

// addLine merges an item into the list. If a line with the same product id
// already exists its quantity is increased, otherwise the item is appended.
func addLine(items []Item, it Item) []Item {
	for i := range items {
		if items[i].ProductID == it.ProductID {
			items[i].Quantity += it.Quantity
			return items
		}
	}
	return append(items, it)
}

// setLineQuantity replaces the absolute quantity of the line with the given
// product id. Lines for other products are left untouched; an unknown
// product id is a no-op.
func setLineQuantity(items []Item, productID string, quantity int32) []Item {
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = quantity
			break
		}
	}
	return items
}

// removeLine filters out the line with the given product id. Removing a
// product that is not in the list is a no-op.
func removeLine(items []Item, productID string) []Item {
	out := items[:0]
	for _, it := range items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	return out
}
