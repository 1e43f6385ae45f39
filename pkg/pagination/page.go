// Package pagination drains Django REST Framework page-numbered list
// endpoints into a single slice.
//
// Pages are requested strictly one after another starting at page 1, and
// results are concatenated in page order. A fetch error aborts the walk and
// discards anything collected so far.
package pagination

import (
	"context"
	"net/url"

	"github.com/rpattn/aquamind/internal/numparse"
)

// DefaultMaxPages bounds a walk when no explicit limit is configured.
const DefaultMaxPages = 100

// Page is the DRF pagination envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// HasNext reports whether the server advertised another page.
func (p *Page[T]) HasNext() bool {
	return p != nil && p.Next != nil
}

// FetchPageFunc loads one page. Page numbers start at 1.
type FetchPageFunc[T any] func(ctx context.Context, page int) (*Page[T], error)

// ProgressFunc receives the page just fetched and the total page count
// estimated from the first page.
type ProgressFunc func(currentPage, totalPages int)

// DetailedProgressFunc receives the page just fetched, the total page count
// estimated from that page, the number of items collected so far and the
// total item count reported by the first page.
type DetailedProgressFunc func(currentPage, totalPages, currentItems, totalItems int)

// ExtractPageFromURL returns the `page` query parameter of an absolute
// pagination link such as the `next` field of a Page.
func ExtractPageFromURL(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return 0, false
	}
	value := u.Query().Get("page")
	if value == "" {
		return 0, false
	}
	n, ok := numparse.LeadingInt(value)
	if !ok {
		return 0, false
	}
	return int(n), true
}
