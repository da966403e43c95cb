// Package extract recovers a single plausible price from scraped page text.
package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
)

var (
	// promotional "as low as $31.48" style price mentions
	promoPattern = regexp.MustCompile(`(?i)as\s+low\s+as:?\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

	// a price standing alone on its own line (top-of-page banner)
	bannerPattern = regexp.MustCompile(`^\s*\$?\s*([0-9][0-9,]*\.[0-9]{2})\s*$`)

	// a whole delimited table cell that is just a price
	cellPattern = regexp.MustCompile(`^\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)$`)
)

// Price applies three ordered heuristics to content, each gated by the
// class's plausible range, and returns the first strategy's candidate.
// Nil means no candidate survived — an expected outcome, not an error.
func Price(content string, class domain.CommodityClass) *decimal.Decimal {
	r := class.Range()

	if p := promoPrice(content, r); p != nil {
		return p
	}
	if p := bannerPrice(content, r); p != nil {
		return p
	}
	return tablePrice(content, r)
}

// promoPrice collects every promotional-pattern match and returns the
// in-range minimum. Promo text mixes per-unit and bulk-roll prices for the
// same product; the per-unit price is always the smaller in-range number.
func promoPrice(content string, r domain.PriceRange) *decimal.Decimal {
	matches := promoPattern.FindAllStringSubmatch(content, -1)
	var candidates []decimal.Decimal
	for _, m := range matches {
		if p, ok := parsePrice(m[1]); ok && r.Contains(p) {
			candidates = append(candidates, p)
		}
	}
	return minOf(candidates)
}

// bannerPrice returns the first in-range price that occupies a line by itself.
func bannerPrice(content string, r domain.PriceRange) *decimal.Decimal {
	for _, line := range strings.Split(content, "\n") {
		m := bannerPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if p, ok := parsePrice(m[1]); ok && r.Contains(p) {
			return &p
		}
	}
	return nil
}

// tablePrice scans delimited tabular cells and returns the in-range minimum.
func tablePrice(content string, r domain.PriceRange) *decimal.Decimal {
	var candidates []decimal.Decimal
	for _, line := range strings.Split(content, "\n") {
		var cells []string
		switch {
		case strings.Contains(line, "|"):
			cells = strings.Split(line, "|")
		case strings.Contains(line, "\t"):
			cells = strings.Split(line, "\t")
		default:
			continue
		}
		for _, cell := range cells {
			m := cellPattern.FindStringSubmatch(strings.TrimSpace(cell))
			if m == nil {
				continue
			}
			if p, ok := parsePrice(m[1]); ok && r.Contains(p) {
				candidates = append(candidates, p)
			}
		}
	}
	return minOf(candidates)
}

func parsePrice(s string) (decimal.Decimal, bool) {
	p, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return p, true
}

func minOf(candidates []decimal.Decimal) *decimal.Decimal {
	if len(candidates) == 0 {
		return nil
	}
	min := candidates[0]
	for _, c := range candidates[1:] {
		if c.LessThan(min) {
			min = c
		}
	}
	return &min
}
