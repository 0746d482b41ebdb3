package cart

import (
	"github.com/shopspring/decimal"

	"github.com/nearandnow/cart-service/internal/domain/coupon"
)

var (
	zero = decimal.Zero

	// Convenience fee tiers on the items subtotal.
	smallOrderFee     = decimal.NewFromInt(60)
	standardOrderFee  = decimal.NewFromInt(30)
	standardOrderMin  = decimal.NewFromInt(100)
	standardOrderMax  = decimal.NewFromInt(300)
	packagingPerBatch = decimal.NewFromInt(5)
	deliveryPerSlab   = decimal.NewFromInt(4)
	metersPerKm       = decimal.NewFromInt(1000)
	metersPerSlab     = decimal.NewFromInt(500)
)

// unitsPerPackage is the number of units that share one packaging charge.
const unitsPerPackage = 3

// Quote is the full breakdown of what the customer pays for the cart.
type Quote struct {
	Subtotal       decimal.Decimal
	ConvenienceFee decimal.Decimal
	PackagingFee   decimal.Decimal
	DeliveryFee    decimal.Decimal
	Projected      decimal.Decimal
	Discount       decimal.Decimal
	Payable        decimal.Decimal
	Units          int
	Stores         int
}

// Quote computes every derived amount of the cart in one pass.
func (e *Engine) Quote() Quote {
	subtotal := e.Subtotal()
	units := e.Units()
	conv := ConvenienceFee(subtotal)
	pack := PackagingFee(units)
	delivery := e.DeliveryFee()
	projected := subtotal.Add(conv).Add(pack).Add(delivery)
	discount := coupon.Amount(e.coupon, subtotal)

	return Quote{
		Subtotal:       subtotal,
		ConvenienceFee: conv,
		PackagingFee:   pack,
		DeliveryFee:    delivery,
		Projected:      projected,
		Discount:       discount,
		Payable:        payable(projected, discount),
		Units:          units,
		Stores:         len(e.StoreIDs()),
	}
}

// Subtotal returns the sum of unit price times quantity over all items.
func (e *Engine) Subtotal() decimal.Decimal {
	sum := zero
	for _, item := range e.items {
		sum = sum.Add(item.Total())
	}
	return sum
}

// Units returns the total quantity across all items.
func (e *Engine) Units() int {
	total := 0
	for _, item := range e.items {
		total += item.Quantity
	}
	return total
}

// ConvenienceFee returns the convenience fee for the current subtotal.
func (e *Engine) ConvenienceFee() decimal.Decimal {
	return ConvenienceFee(e.Subtotal())
}

// PackagingFee returns the packaging fee for the current units.
func (e *Engine) PackagingFee() decimal.Decimal {
	return PackagingFee(e.Units())
}

// DeliveryFee sums the per-store delivery charge. Each store is charged by
// the distance recorded on its first line item in insertion order.
func (e *Engine) DeliveryFee() decimal.Decimal {
	seen := make(map[string]struct{}, MaxStores)
	fee := zero
	for _, item := range e.items {
		if _, ok := seen[item.StoreID]; ok {
			continue
		}
		seen[item.StoreID] = struct{}{}
		fee = fee.Add(StoreDeliveryFee(item.DistanceKm))
	}
	return fee
}

// Projected returns subtotal plus all fees.
func (e *Engine) Projected() decimal.Decimal {
	return e.Quote().Projected
}

// Discount returns the applied coupon's discount on the subtotal.
func (e *Engine) Discount() decimal.Decimal {
	return coupon.Amount(e.coupon, e.Subtotal())
}

// Payable returns the projected amount minus the discount, never negative.
func (e *Engine) Payable() decimal.Decimal {
	return e.Quote().Payable
}

// ConvenienceFee is 60 for small orders, 30 between 100 and 300 inclusive,
// and free for empty carts and orders above 300.
func ConvenienceFee(subtotal decimal.Decimal) decimal.Decimal {
	switch {
	case !subtotal.IsPositive():
		return zero
	case subtotal.LessThan(standardOrderMin):
		return smallOrderFee
	case subtotal.LessThanOrEqual(standardOrderMax):
		return standardOrderFee
	default:
		return zero
	}
}

// PackagingFee charges 5 for every started batch of three units.
func PackagingFee(units int) decimal.Decimal {
	if units <= 0 {
		return zero
	}
	batches := (units + unitsPerPackage - 1) / unitsPerPackage
	return packagingPerBatch.Mul(decimal.NewFromInt(int64(batches)))
}

// StoreDeliveryFee charges 4 for every started 500 m of distance.
func StoreDeliveryFee(distanceKm decimal.Decimal) decimal.Decimal {
	if !distanceKm.IsPositive() {
		return zero
	}
	slabs := distanceKm.Mul(metersPerKm).Div(metersPerSlab).Ceil()
	return slabs.Mul(deliveryPerSlab)
}

func payable(projected, discount decimal.Decimal) decimal.Decimal {
	amount := projected.Sub(discount)
	if amount.IsNegative() {
		return zero
	}
	return amount
}
