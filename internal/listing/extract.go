package listing

import (
	"strings"

	"adscroll/internal/page"
)

// Extract reads one card. It never fails: a missing or unreadable
// sub-element leaves its field at NotAvailable.
func Extract(card page.Element, sel Selectors) Record {
	rec := Empty()

	if el, err := card.Query(sel.Title); err == nil {
		rec.Title = textOr(el, rec.Title)
	}

	descriptions, _ := card.QueryAll(sel.Description)
	if len(descriptions) > 0 {
		rec.Deposit = textOr(descriptions[0], rec.Deposit)
	}
	if len(descriptions) > 1 {
		rec.Rent = textOr(descriptions[1], rec.Rent)
	}

	if agencies, _ := card.QueryAll(sel.BottomDescription); len(agencies) > 0 {
		rec.Agency = textOr(agencies[0], rec.Agency)
	}

	if actions, _ := card.QueryAll(sel.Action); len(actions) > 0 {
		if href, ok, err := actions[0].Attribute("href"); err == nil && ok {
			rec.Link = href
		}
	}

	return rec
}

// ReadID returns the card identifier, or false when the card has none yet.
func ReadID(card page.Element, sel Selectors) (ID, bool) {
	id, ok, err := card.Attribute(sel.IDAttribute)
	if err != nil || !ok || id == "" {
		return "", false
	}
	return id, true
}

func textOr(el page.Element, fallback string) string {
	text, err := el.Text()
	if err != nil {
		return fallback
	}
	return strings.TrimSpace(text)
}
