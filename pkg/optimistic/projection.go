package optimistic

import "strings"

// Searchable exposes the free-text fields an entity offers to search.
type Searchable interface {
	SearchText() []string
}

// Predicate is one categorical filter dimension.
type Predicate[E any] func(E) bool

// Equals builds a predicate matching an exact field value. An empty or
// "all" wanted value leaves the dimension unconstrained.
func Equals[E any](field func(E) string, want string) Predicate[E] {
	if want == "" || strings.EqualFold(want, "all") {
		return func(E) bool { return true }
	}
	return func(e E) bool { return field(e) == want }
}

// Project derives the displayed subset of items: entities whose search text
// contains the query (case-insensitive substring) and which satisfy every
// predicate. Order is preserved and the input is never mutated.
func Project[E Searchable](items []E, query string, preds ...Predicate[E]) []E {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]E, 0, len(items))
outer:
	for _, item := range items {
		if query != "" && !matchesQuery(item, query) {
			continue
		}
		for _, pred := range preds {
			if !pred(item) {
				continue outer
			}
		}
		out = append(out, item)
	}
	return out
}

func matchesQuery[E Searchable](item E, query string) bool {
	for _, field := range item.SearchText() {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
