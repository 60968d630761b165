package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"car-price-app/models"
	"car-price-app/utils"
)

// priceRegexp matches one price token: either digits grouped by thousands
// with an optional one or two digit decimal part, or a plain run of digits.
// The token must not run straight into another digit.
var priceRegexp = regexp.MustCompile(
	`(\d{1,3}(?:[ .,'\x{a0}\x{202f}]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)(?:\D|$)`)

const maxDescriptionLen = 200

// Cleaner transforms RawListings into clean, validated Listings.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean processes raw listings and returns cleaned records in input order.
// Rows without a label or without a positive price are dropped.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.Listing {
	result := make([]*models.Listing, 0, len(raw))

	for _, r := range raw {
		label := normaliseText(r.Label)
		if label == "" {
			c.logger.Warn("[cleaner] Dropping listing with empty label (price %q)", r.RawPrice)
			continue
		}

		price := c.parsePrice(r.RawPrice)
		if price <= 0 {
			c.logger.Warn("[cleaner] Dropping %q: unreadable price %q", label, r.RawPrice)
			continue
		}

		result = append(result, &models.Listing{
			Label:       label,
			Price:       price,
			Description: truncate(normaliseText(r.Description), maxDescriptionLen),
		})
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// parsePrice extracts a price from free text. When the text holds several
// numbers, such as a model year next to the price, the largest one wins.
// Examples:
//
//	"39,500 TND"       → 39500
//	"39.500 DT"        → 39500
//	"41 000"           → 41000
//	"41000,50 TND"     → 41000.5
//	"Clio 2018 39 500" → 39500
func (c *Cleaner) parsePrice(raw string) float64 {
	var best float64
	for _, m := range priceRegexp.FindAllStringSubmatch(raw, -1) {
		if v, ok := priceValue(m[1]); ok && v > best {
			best = v
		}
	}
	return best
}

// priceValue reads a matched price token. A final '.' or ',' followed by one
// or two digits is the decimal mark; every other separator groups thousands.
func priceValue(token string) (float64, bool) {
	intPart, frac := token, ""
	if i := strings.LastIndexAny(token, ".,"); i >= 0 {
		if n := len(token) - i - 1; n == 1 || n == 2 {
			intPart, frac = token[:i], token[i+1:]
		}
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, intPart)
	if frac != "" {
		digits += "." + frac
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
