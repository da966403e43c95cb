package domain

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// CommodityClass categorizes an item for plausible-price bounds.
type CommodityClass string

const (
	ClassSilver    CommodityClass = "silver"
	ClassGold      CommodityClass = "gold"
	ClassPlatinum  CommodityClass = "platinum"
	ClassPalladium CommodityClass = "palladium"
)

// PriceRange bounds what a single coin/bar of a class can plausibly cost.
// Anything outside is an accessory, a bulk-roll total, or a spot ticker.
type PriceRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

var classRanges = map[CommodityClass]PriceRange{
	ClassSilver:    {Min: decimal.NewFromInt(15), Max: decimal.NewFromInt(250)},
	ClassGold:      {Min: decimal.NewFromInt(1500), Max: decimal.NewFromInt(5000)},
	ClassPlatinum:  {Min: decimal.NewFromInt(700), Max: decimal.NewFromInt(2500)},
	ClassPalladium: {Min: decimal.NewFromInt(600), Max: decimal.NewFromInt(3000)},
}

// ParseCommodityClass validates and normalizes a class string.
func ParseCommodityClass(s string) (CommodityClass, error) {
	c := CommodityClass(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := classRanges[c]; !ok {
		return "", ErrUnknownCommodityClass
	}
	return c, nil
}

// Range returns the plausible price range for the class.
func (c CommodityClass) Range() PriceRange {
	return classRanges[c]
}

// Contains reports whether p falls inside the range, inclusive.
func (r PriceRange) Contains(p decimal.Decimal) bool {
	return p.GreaterThanOrEqual(r.Min) && p.LessThanOrEqual(r.Max)
}

// Target is one (item, vendor, URL) acquisition unit from the catalog.
type Target struct {
	ItemID       string          `json:"item_id"`
	VendorID     string          `json:"vendor_id"`
	URL          string          `json:"url"`
	ItemName     string          `json:"item_name"`
	Class        CommodityClass  `json:"commodity_class"`
	UnitWeightOz decimal.Decimal `json:"unit_weight_oz"`
}

// Validate checks the catalog entry is usable.
func (t *Target) Validate() error {
	if strings.TrimSpace(t.ItemID) == "" || strings.TrimSpace(t.VendorID) == "" {
		return ErrInvalidTarget
	}
	u, err := url.Parse(t.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidTarget
	}
	if _, err := ParseCommodityClass(string(t.Class)); err != nil {
		return err
	}
	return nil
}

// Key identifies the (item, vendor) pair a target belongs to.
func (t *Target) Key() string {
	return t.ItemID + "|" + t.VendorID
}
