/**
 * @description
 * Price calculation for the listing fee. The fee is a fixed USD amount and
 * the ARS figure is derived from a fixed configuration rate; both are knobs
 * in internal/config, never derived at runtime.
 */

package app

import "math"

// Quote is the dual-currency price of a listing fee after an optional
// discount. USD and ARS retain full precision; rounding is display-only.
type Quote struct {
	BaseUSD         float64 `json:"base_usd"`
	DiscountPercent float64 `json:"discount_percent"`
	USD             float64 `json:"usd"`
	ARS             float64 `json:"ars"`
}

// ComputeFinalPrice applies a percentage discount to the base USD fee and
// converts to ARS at the given rate. A zero discount returns the base price
// exactly.
func ComputeFinalPrice(baseUSD, discountPercent, fxRate float64) Quote {
	usd := baseUSD
	if discountPercent != 0 {
		usd = baseUSD * (1 - discountPercent/100)
	}
	return Quote{
		BaseUSD:         baseUSD,
		DiscountPercent: discountPercent,
		USD:             usd,
		ARS:             usd * fxRate,
	}
}

// DisplayUSD rounds the USD price to two decimals for presentation and for
// the amount sent to the payment providers.
func (q Quote) DisplayUSD() float64 {
	return math.Round(q.USD*100) / 100
}

// DisplayARS rounds the ARS price to a whole number for presentation.
func (q Quote) DisplayARS() float64 {
	return math.Round(q.ARS)
}
