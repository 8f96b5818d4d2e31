// Package pricing computes what a customer owes for a set of priced lines.
// All amounts are decimal currency units; nothing here is cached or persisted.
package pricing

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

var (
	TaxRate               = decimal.RequireFromString("0.08")
	FreeShippingThreshold = decimal.RequireFromString("75.00")
	FlatShippingFee       = decimal.RequireFromString("9.99")

	hundred = decimal.NewFromInt(100)
)

// Line is one priced quantity.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Shipping   decimal.Decimal
	GrandTotal decimal.Decimal
}

func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Tax rounds half-up to two decimal places.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate).Round(2)
}

// Shipping is free only strictly above the threshold.
func Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShippingFee
}

func Compute(lines []Line) Totals {
	return FromSubtotal(Subtotal(lines))
}

func FromSubtotal(subtotal decimal.Decimal) Totals {
	tax := Tax(subtotal)
	shipping := Shipping(subtotal)
	return Totals{
		Subtotal:   subtotal,
		Tax:        tax,
		Shipping:   shipping,
		GrandTotal: subtotal.Add(tax).Add(shipping),
	}
}

// MinorUnits converts an amount to integer cents/paise, rounding half-up.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func (t Totals) MinorUnits() int64 {
	return MinorUnits(t.GrandTotal)
}

type totalsJSON struct {
	Subtotal   string `json:"subtotal"`
	Tax        string `json:"tax"`
	Shipping   string `json:"shipping"`
	GrandTotal string `json:"grand_total"`
}

func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(totalsJSON{
		Subtotal:   t.Subtotal.StringFixed(2),
		Tax:        t.Tax.StringFixed(2),
		Shipping:   t.Shipping.StringFixed(2),
		GrandTotal: t.GrandTotal.StringFixed(2),
	})
}

func (t *Totals) UnmarshalJSON(data []byte) error {
	var raw totalsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := []struct {
		src string
		dst *decimal.Decimal
	}{
		{raw.Subtotal, &t.Subtotal},
		{raw.Tax, &t.Tax},
		{raw.Shipping, &t.Shipping},
		{raw.GrandTotal, &t.GrandTotal},
	}
	for _, f := range fields {
		if f.src == "" {
			*f.dst = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}
