// Package shipping computes shipping cost from the cart subtotal and the
// configured pricing policy.
package shipping

import "storefront/internal/settings"

// Cost is a step function: shipping is free once the subtotal reaches the
// large-purchase threshold (inclusive), otherwise the flat configured price
// applies. Amounts are in minor currency units.
func Cost(subtotal int64, cfg settings.Shipping) int64 {
	if subtotal >= cfg.LargePurchaseThreshold {
		return 0
	}
	return cfg.ShippingPrice
}
