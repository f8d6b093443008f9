package billing

// multiVehicleDiscountPercent is the flat discount applied to every
// vehicle after the first on a checkout. It never compounds: each
// discounted vehicle is priced from its own plan's base amount.
const multiVehicleDiscountPercent = 10

// DiscountedUnitAmount returns the multi-vehicle price in minor currency
// units: (100 - discount)% of base, rounded half-up.
func DiscountedUnitAmount(base int64) int64 {
	return (base*(100-multiVehicleDiscountPercent) + 50) / 100
}
