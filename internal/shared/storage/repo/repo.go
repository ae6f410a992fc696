// Package repo is the shared persistence layer: a filter-driven store over
// one table, with a Postgres implementation and an in-memory twin that
// honours the same filter, ordering and paging rules.
package repo

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrConflict      = errors.New("unique constraint violated")
	ErrIntegrity     = errors.New("integrity constraint violated")
	ErrUnknownColumn = errors.New("unknown column")
	ErrEmptyFilter   = errors.New("filters required")
)

const (
	DefaultPageLimit = 5
	defaultOrderBy   = "created_at"
)

// Base holds the columns every table carries.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filters maps a column to a value (equality) or to an operator map such as
// {"gte": 100, "in": []string{...}}. Empty values are ignored.
type Filters map[string]any

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Page selects a window of results. Zero values are normalized.
type Page struct {
	Current int
	Limit   int
}

// Normalize applies the defaults: limit 5, page 1.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Current <= 0 {
		p.Current = 1
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Current - 1) * n.Limit
}

// Pagination is the paging block returned next to list results.
type Pagination struct {
	Count       int `json:"count"`
	MaxPage     int `json:"maxPage"`
	CurrentPage int `json:"currentPage"`
	Limit       int `json:"limit"`
}

// NewPagination computes the paging block for count matching rows.
func NewPagination(count int, page Page) Pagination {
	p := page.Normalize()
	return Pagination{
		Count:       count,
		MaxPage:     int(math.Ceil(float64(count) / float64(p.Limit))),
		CurrentPage: p.Current,
		Limit:       p.Limit,
	}
}

// Query bundles the arguments of Fetch. A nil Page returns every match.
type Query struct {
	Filters Filters
	Order   []Order
	Page    *Page
}

// Table describes how a Go struct maps onto a SQL table.
type Table[T any] struct {
	Name string
	// Columns lists the data columns, excluding id, created_at and updated_at.
	Columns []string
	// Fields returns pointers to the struct fields in Columns order.
	Fields func(*T) []any
	Meta   func(*T) *Base
	// Unique lists column sets that must be unique (enforced by Memory;
	// Postgres relies on the schema).
	Unique [][]string
}

func (t Table[T]) hasColumn(name string) bool {
	switch name {
	case "id", "created_at", "updated_at":
		return true
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (t Table[T]) allColumns() []string {
	cols := make([]string, 0, len(t.Columns)+3)
	cols = append(cols, "id")
	cols = append(cols, t.Columns...)
	return append(cols, "created_at", "updated_at")
}

// Store is the generic CRUD contract implemented by PG and Memory.
type Store[T any] interface {
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, item *T) error
	Update(ctx context.Context, item *T) error
	Delete(ctx context.Context, id string) error
	DeleteWhere(ctx context.Context, filters Filters) (int64, error)
	Fetch(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, filters Filters) (int, error)
}
