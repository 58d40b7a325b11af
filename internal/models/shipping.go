package models

// ShippingMethod identifies the courier used for a sold record.
type ShippingMethod string

const (
	ShippingSTO  ShippingMethod = "STO"
	ShippingJD   ShippingMethod = "JD"
	ShippingSF   ShippingMethod = "SF"
	ShippingFree ShippingMethod = "FREE"
)

// DefaultShippingMethod is assigned when a sold record carries no shipping
// information at all.
const DefaultShippingMethod = ShippingSTO

// shippingCosts is the fixed default cost per method.
var shippingCosts = map[ShippingMethod]float64{
	ShippingSTO:  5.6,
	ShippingJD:   15,
	ShippingSF:   18,
	ShippingFree: 0,
}

// ShippingCostFor returns the default cost for a method. Unknown or absent
// methods cost nothing.
func ShippingCostFor(m ShippingMethod) float64 {
	return shippingCosts[m]
}

// NormalizeShipping fills in shipping defaults for a record whose sale leg is
// being recorded. A cost already set is kept; a missing method gets the
// default method and its cost; a method without a cost gets that method's
// table cost. Records without a sale leg are left untouched.
//
// At this layer a zero cost means "unset": float64 cannot tell an explicit 0
// from an absent field, so a zero cost next to a priced method is re-costed
// from the table. Callers that do know presence (the import reconciler reads
// it off the raw JSON) must restore an explicit zero after sanitizing.
func (r *Record) NormalizeShipping() {
	if !r.IsSold && r.SellPrice <= 0 {
		return
	}
	if r.ShippingCost > 0 {
		if r.ShippingMethod == "" {
			r.ShippingMethod = DefaultShippingMethod
		}
		return
	}
	if r.ShippingMethod == "" {
		r.ShippingMethod = DefaultShippingMethod
	}
	r.ShippingCost = ShippingCostFor(r.ShippingMethod)
}
