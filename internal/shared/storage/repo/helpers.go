package repo

import (
	"context"
	"errors"
)

// First returns the first row matching filters in the given order.
func First[T any](ctx context.Context, s Store[T], filters Filters, order ...Order) (T, error) {
	items, err := s.Fetch(ctx, Query{Filters: filters, Order: order, Page: &Page{Current: 1, Limit: 1}})
	if err != nil {
		var zero T
		return zero, err
	}
	if len(items) == 0 {
		var zero T
		return zero, ErrNotFound
	}
	return items[0], nil
}

// Exists reports whether any row matches filters.
func Exists[T any](ctx context.Context, s Store[T], filters Filters) (bool, error) {
	n, err := s.Count(ctx, filters)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetOrCreate returns the row matching filters, creating build() when none
// exists. A concurrent insert that wins the unique race is re-read.
func GetOrCreate[T any](ctx context.Context, s Store[T], filters Filters, build func() T) (T, bool, error) {
	found, err := First(ctx, s, filters)
	if err == nil {
		return found, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return found, false, err
	}

	item := build()
	if err := s.Create(ctx, &item); err != nil {
		if errors.Is(err, ErrConflict) {
			again, againErr := First(ctx, s, filters)
			if againErr == nil {
				return again, false, nil
			}
		}
		return item, false, err
	}
	return item, true, nil
}

// FetchPage returns one page of matches plus the pagination block.
func FetchPage[T any](ctx context.Context, s Store[T], q Query) ([]T, Pagination, error) {
	page := Page{}
	if q.Page != nil {
		page = *q.Page
	}
	page = page.Normalize()
	q.Page = &page

	count, err := s.Count(ctx, q.Filters)
	if err != nil {
		return nil, Pagination{}, err
	}
	items, err := s.Fetch(ctx, q)
	if err != nil {
		return nil, Pagination{}, err
	}
	if items == nil {
		items = []T{}
	}
	return items, NewPagination(count, page), nil
}

// In builds the operator map for a membership filter.
func In[V any](values []V) map[string]any {
	return map[string]any{OpIn: values}
}
