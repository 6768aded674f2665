package shop

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/aimd54/task-coach/internal/models"
)

// normalize folds full-width forms, applies NFKC, lowercases and drops every rune
// that is not a letter or digit.
func normalize(s string) string {
	s = norm.NFKC.String(width.Fold.String(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// match finds query in items. Exact name or code wins, then normalized equality,
// then a normalized containment that hits exactly one item.
func match(items []models.ShopItem, query string) (*models.ShopItem, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false
	}

	for i := range items {
		if items[i].ItemName == query || items[i].ItemCode == query {
			return &items[i], true
		}
	}

	key := normalize(query)
	if key == "" {
		return nil, false
	}
	for i := range items {
		if normalize(items[i].ItemName) == key || normalize(items[i].ItemCode) == key {
			return &items[i], true
		}
	}

	var found *models.ShopItem
	for i := range items {
		name := normalize(items[i].ItemName)
		if strings.Contains(name, key) || (len(name) > 0 && strings.Contains(key, name)) {
			if found != nil {
				return nil, false
			}
			found = &items[i]
		}
	}
	return found, found != nil
}
