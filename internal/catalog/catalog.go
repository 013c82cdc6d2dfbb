// Package catalog knows the divar real-estate feeds and builds their URLs.
package catalog

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	BaseURL     = "https://divar.ir/s/"
	DefaultCity = "babolsar"
)

// Option is one menu entry: what the user sees and the feed slug it selects.
type Option struct {
	Label string
	Slug  string
}

// Category is a top-level menu entry. Subcategories are offered in order;
// the first one always selects the category feed itself.
type Category struct {
	Option
	Subcategories []Option
}

// Categories is the menu, indexed by the number the user types.
var Categories = []Category{
	{Option: Option{"all ads", "real-estate"}},
	{
		Option: Option{"buy-residential", "buy-residential"},
		Subcategories: []Option{
			{"the sub-category itself", "buy-residential"},
			{"apartment", "buy-apartment"},
			{"villa", "buy-villa"},
			{"old-house", "buy-old-house"},
		},
	},
	{
		Option: Option{"rent-residential", "rent-residential"},
		Subcategories: []Option{
			{"the sub-category itself", "rent-residential"},
			{"apartment", "rent-apartment"},
			{"villa", "rent-villa"},
		},
	},
	{
		Option: Option{"buy-commercial-property", "buy-commercial-property"},
		Subcategories: []Option{
			{"the sub-category itself", "buy-commercial-property"},
			{"office", "buy-office"},
			{"store", "buy-store"},
			{"industrial-agricultural-property", "buy-industrial-agricultural-property"},
		},
	},
	{
		Option: Option{"rent-commercial-property", "rent-commercial-property"},
		Subcategories: []Option{
			{"the sub-category itself", "rent-commercial-property"},
			// the site has no separate office feed for rentals
			{"office", "rent-commercial-property"},
			{"store", "rent-store"},
			{"industrial-agricultural-property", "rent-industrial-agricultural-property"},
		},
	},
	{
		Option: Option{"rent-temporary", "rent-temporary"},
		Subcategories: []Option{
			{"the sub-category itself", "rent-temporary"},
			{"temporary-suite-apartment", "rent-temporary-suite-apartment"},
			{"temporary-villa", "rent-temporary-villa"},
			{"temporary-workspace", "rent-temporary-workspace"},
		},
	},
	{
		Option: Option{"real-estate-services", "real-estate-services"},
		Subcategories: []Option{
			{"the sub-category itself", "real-estate-services"},
			{"contribution-construction", "contribution-construction"},
			{"pre-sell-home", "pre-sell-home"},
		},
	},
}

// URL returns the feed address for slug in city. An empty city means DefaultCity.
func URL(city, slug string) string {
	if city == "" {
		city = DefaultCity
	}
	return BaseURL + url.PathEscape(city) + "/" + url.PathEscape(slug)
}

// Resolve maps a category number and a 1-based subcategory number to a slug.
// sub is ignored for categories without subcategories.
func Resolve(category, sub int) (string, error) {
	if category < 0 || category >= len(Categories) {
		return "", fmt.Errorf("invalid category: %d (0-%d)", category, len(Categories)-1)
	}
	c := Categories[category]
	if len(c.Subcategories) == 0 {
		return c.Slug, nil
	}
	if sub < 1 || sub > len(c.Subcategories) {
		return "", fmt.Errorf("invalid subcategory for %s: %d (1-%d)", c.Label, sub, len(c.Subcategories))
	}
	return c.Subcategories[sub-1].Slug, nil
}

// Lookup reports whether slug names a known feed.
func Lookup(slug string) bool {
	slug = strings.TrimSpace(slug)
	for _, c := range Categories {
		if c.Slug == slug {
			return true
		}
		for _, s := range c.Subcategories {
			if s.Slug == slug {
				return true
			}
		}
	}
	return false
}
