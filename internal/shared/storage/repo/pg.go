package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PG is a Postgres-backed Store.
type PG[T any] struct {
	DB    DBTX
	Table Table[T]
	now   func() time.Time
}

// NewPG constructs a PG store for table.
func NewPG[T any](db DBTX, table Table[T]) *PG[T] {
	return &PG[T]{DB: db, Table: table, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

func (r *PG[T]) clock() time.Time {
	if r.now == nil {
		return utcNow()
	}
	return r.now()
}

func (r *PG[T]) selectList() string {
	cols := r.Table.allColumns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func (r *PG[T]) scanTargets(item *T) []any {
	meta := r.Table.Meta(item)
	targets := []any{&meta.ID}
	targets = append(targets, r.Table.Fields(item)...)
	return append(targets, &meta.CreatedAt, &meta.UpdatedAt)
}

func (r *PG[T]) Get(ctx context.Context, id string) (T, error) {
	var item T
	query := "SELECT " + r.selectList() + " FROM " + quoteIdent(r.Table.Name) + " WHERE \"id\" = $1"
	if err := r.DB.QueryRowContext(ctx, query, id).Scan(r.scanTargets(&item)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return item, ErrNotFound
		}
		return item, fmt.Errorf("get %s: %w", r.Table.Name, err)
	}
	return item, nil
}

func (r *PG[T]) Create(ctx context.Context, item *T) error {
	meta := r.Table.Meta(item)
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	now := r.clock()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	cols := r.Table.allColumns()
	quoted := make([]string, len(cols))
	ph := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		ph[i] = "$" + strconv.Itoa(i+1)
	}
	args := []any{meta.ID}
	args = append(args, values(r.Table.Fields(item))...)
	args = append(args, meta.CreatedAt, meta.UpdatedAt)

	query := "INSERT INTO " + quoteIdent(r.Table.Name) + " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(ph, ", ") + ")"
	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		return mapError("create "+r.Table.Name, err)
	}
	return nil
}

func (r *PG[T]) Update(ctx context.Context, item *T) error {
	meta := r.Table.Meta(item)
	if meta.ID == "" {
		return ErrNotFound
	}
	meta.UpdatedAt = r.clock()

	sets := make([]string, 0, len(r.Table.Columns)+1)
	for i, c := range r.Table.Columns {
		sets = append(sets, quoteIdent(c)+" = $"+strconv.Itoa(i+1))
	}
	n := len(r.Table.Columns)
	sets = append(sets, "\"updated_at\" = $"+strconv.Itoa(n+1))
	args := values(r.Table.Fields(item))
	args = append(args, meta.UpdatedAt, meta.ID)

	query := "UPDATE " + quoteIdent(r.Table.Name) + " SET " + strings.Join(sets, ", ") + " WHERE \"id\" = $" + strconv.Itoa(n+2)
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError("update "+r.Table.Name, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PG[T]) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM "+quoteIdent(r.Table.Name)+" WHERE \"id\" = $1", id)
	if err != nil {
		return mapError("delete "+r.Table.Name, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PG[T]) DeleteWhere(ctx context.Context, filters Filters) (int64, error) {
	conds, err := conditions(filters, r.Table.hasColumn)
	if err != nil {
		return 0, err
	}
	if len(conds) == 0 {
		return 0, ErrEmptyFilter
	}
	where, args := whereClause(conds, 1)
	res, err := r.DB.ExecContext(ctx, "DELETE FROM "+quoteIdent(r.Table.Name)+where, args...)
	if err != nil {
		return 0, mapError("delete "+r.Table.Name, err)
	}
	return res.RowsAffected()
}

func (r *PG[T]) Fetch(ctx context.Context, q Query) ([]T, error) {
	conds, err := conditions(q.Filters, r.Table.hasColumn)
	if err != nil {
		return nil, err
	}
	order, err := r.orderClause(q.Order)
	if err != nil {
		return nil, err
	}
	where, args := whereClause(conds, 1)
	query := "SELECT " + r.selectList() + " FROM " + quoteIdent(r.Table.Name) + where + order
	if q.Page != nil {
		p := q.Page.Normalize()
		n := len(args)
		query += " LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
		args = append(args, p.Limit, p.Offset())
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.Table.Name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var item T
		if err := rows.Scan(r.scanTargets(&item)...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.Table.Name, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *PG[T]) Count(ctx context.Context, filters Filters) (int, error) {
	conds, err := conditions(filters, r.Table.hasColumn)
	if err != nil {
		return 0, err
	}
	where, args := whereClause(conds, 1)
	var n int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(r.Table.Name)+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.Table.Name, err)
	}
	return n, nil
}

func (r *PG[T]) orderClause(order []Order) (string, error) {
	if len(order) == 0 {
		order = []Order{{Column: defaultOrderBy, Desc: true}}
	}
	terms := make([]string, 0, len(order))
	for _, o := range order {
		if !r.Table.hasColumn(o.Column) {
			return "", fmt.Errorf("%w: %s", ErrUnknownColumn, o.Column)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms = append(terms, quoteIdent(o.Column)+" "+dir)
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

// values dereferences field pointers into driver arguments; nil pointers become NULL.
func values(ptrs []any) []any {
	out := make([]any, len(ptrs))
	for i, p := range ptrs {
		rv := reflect.ValueOf(p)
		if rv.Kind() != reflect.Pointer || rv.IsNil() {
			out[i] = p
			continue
		}
		elem := rv.Elem()
		if elem.Kind() == reflect.Pointer {
			if elem.IsNil() {
				out[i] = nil
				continue
			}
			out[i] = elem.Elem().Interface()
			continue
		}
		out[i] = elem.Interface()
	}
	return out
}

func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w: %s", op, ErrConflict, pgErr.ConstraintName)
		case "23503", "23502", "23514":
			return fmt.Errorf("%s: %w: %s", op, ErrIntegrity, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
