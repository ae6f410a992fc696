package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used in dev mode and tests.
type Memory[T any] struct {
	Table Table[T]

	mu    sync.RWMutex
	items map[string]memRow[T]
	seq   uint64
	now   func() time.Time
}

type memRow[T any] struct {
	item T
	seq  uint64
}

// NewMemory constructs an empty Memory store for table.
func NewMemory[T any](table Table[T]) *Memory[T] {
	return &Memory[T]{Table: table, items: make(map[string]memRow[T]), now: utcNow}
}

func (m *Memory[T]) clock() time.Time {
	if m.now == nil {
		return utcNow()
	}
	return m.now()
}

func (m *Memory[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.items[id]
	if !ok {
		return zero, ErrNotFound
	}
	return row.item, nil
}

func (m *Memory[T]) Create(ctx context.Context, item *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meta := m.Table.Meta(item)
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	now := m.clock()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[meta.ID]; exists {
		return fmt.Errorf("create %s: %w: id", m.Table.Name, ErrConflict)
	}
	if err := m.checkUnique(item, meta.ID); err != nil {
		return err
	}
	m.seq++
	m.items[meta.ID] = memRow[T]{item: *item, seq: m.seq}
	return nil
}

func (m *Memory[T]) Update(ctx context.Context, item *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meta := m.Table.Meta(item)

	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.items[meta.ID]
	if !ok {
		return ErrNotFound
	}
	if err := m.checkUnique(item, meta.ID); err != nil {
		return err
	}
	meta.CreatedAt = m.Table.Meta(&row.item).CreatedAt
	meta.UpdatedAt = m.clock()
	row.item = *item
	m.items[meta.ID] = row
	return nil
}

func (m *Memory[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *Memory[T]) DeleteWhere(ctx context.Context, filters Filters) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	conds, err := conditions(filters, m.Table.hasColumn)
	if err != nil {
		return 0, err
	}
	if len(conds) == 0 {
		return 0, ErrEmptyFilter
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, row := range m.items {
		item := row.item
		if match(conds, m.getter(&item)) {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory[T]) Fetch(ctx context.Context, q Query) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conds, err := conditions(q.Filters, m.Table.hasColumn)
	if err != nil {
		return nil, err
	}
	order := q.Order
	if len(order) == 0 {
		order = []Order{{Column: defaultOrderBy, Desc: true}}
	}
	for _, o := range order {
		if !m.Table.hasColumn(o.Column) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, o.Column)
		}
	}

	m.mu.RLock()
	rows := make([]memRow[T], 0, len(m.items))
	for _, row := range m.items {
		item := row.item
		if match(conds, m.getter(&item)) {
			rows = append(rows, row)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		ga, gb := m.getter(&a.item), m.getter(&b.item)
		for _, o := range order {
			c := compareNullable(ga(o.Column), gb(o.Column))
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		if order[0].Desc {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})

	if q.Page != nil {
		p := q.Page.Normalize()
		start := p.Offset()
		if start >= len(rows) {
			return []T{}, nil
		}
		end := start + p.Limit
		if end > len(rows) {
			end = len(rows)
		}
		rows = rows[start:end]
	}

	out := make([]T, len(rows))
	for i, row := range rows {
		out[i] = row.item
	}
	return out, nil
}

func (m *Memory[T]) Count(ctx context.Context, filters Filters) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	conds, err := conditions(filters, m.Table.hasColumn)
	if err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, row := range m.items {
		item := row.item
		if match(conds, m.getter(&item)) {
			n++
		}
	}
	return n, nil
}

// getter returns a column accessor over item.
func (m *Memory[T]) getter(item *T) func(string) any {
	meta := m.Table.Meta(item)
	fields := m.Table.Fields(item)
	return func(col string) any {
		switch col {
		case "id":
			return meta.ID
		case "created_at":
			return meta.CreatedAt
		case "updated_at":
			return meta.UpdatedAt
		}
		for i, c := range m.Table.Columns {
			if c == col {
				return deref(fields[i])
			}
		}
		return nil
	}
}

// checkUnique must be called with the write lock held.
func (m *Memory[T]) checkUnique(item *T, selfID string) error {
	if len(m.Table.Unique) == 0 {
		return nil
	}
	get := m.getter(item)
	for id, row := range m.items {
		if id == selfID {
			continue
		}
		other := row.item
		og := m.getter(&other)
		for _, key := range m.Table.Unique {
			same := true
			for _, col := range key {
				a, b := get(col), og(col)
				if isNull(a) || isNull(b) || compare(a, b) != 0 {
					same = false
					break
				}
			}
			if same {
				return fmt.Errorf("%s: %w: %v", m.Table.Name, ErrConflict, key)
			}
		}
	}
	return nil
}

// compareNullable sorts NULLs last in ascending order, as Postgres does.
func compareNullable(a, b any) int {
	an, bn := isNull(a), isNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return compare(a, b)
}
