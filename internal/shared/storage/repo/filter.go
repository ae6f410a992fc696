package repo

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Operator names accepted inside an operator map.
const (
	OpGt       = "gt"
	OpGte      = "gte"
	OpLt       = "lt"
	OpLte      = "lte"
	OpIn       = "in"
	OpLike     = "like"
	OpILike    = "ilike"
	OpExact    = "exact"
	OpNotExact = "not_exact"
)

// condition is one normalized predicate: column op value.
type condition struct {
	column string
	op     string
	value  any
}

// conditions flattens filters into predicates, sorted by column for stable SQL.
// Plain values that are false, zero or empty are skipped; operands inside an
// operator map are kept. Unknown operators are dropped; unknown columns are an error.
func conditions(filters Filters, known func(string) bool) ([]condition, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []condition
	for _, col := range keys {
		raw := filters[col]
		ops, isOps := asOpMap(raw)
		if !isOps {
			if isFalsy(raw) {
				continue
			}
			if !known(col) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
			}
			out = append(out, condition{column: col, op: OpExact, value: raw})
			continue
		}

		opKeys := make([]string, 0, len(ops))
		for k := range ops {
			opKeys = append(opKeys, k)
		}
		sort.Strings(opKeys)
		for _, op := range opKeys {
			val := ops[op]
			switch op {
			case OpExact, OpNotExact:
				// nil is meaningful here: IS NULL / IS NOT NULL.
				if val != nil && isEmpty(val) {
					continue
				}
			case OpGt, OpGte, OpLt, OpLte, OpLike, OpILike:
				if isEmpty(val) {
					continue
				}
			case OpIn:
				if val == nil {
					continue
				}
			default:
				continue
			}
			if !known(col) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
			}
			out = append(out, condition{column: col, op: op, value: val})
		}
	}
	return out, nil
}

func asOpMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Filters:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

// isFalsy extends isEmpty with false and numeric zero.
func isFalsy(v any) bool {
	if isEmpty(v) {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	}
	return false
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// whereClause renders conditions as SQL with $n placeholders starting at start.
func whereClause(conds []condition, start int) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	n := start
	next := func(v any) string {
		args = append(args, v)
		s := "$" + strconv.Itoa(n)
		n++
		return s
	}
	for _, c := range conds {
		col := quoteIdent(c.column)
		switch c.op {
		case OpExact:
			if c.value == nil {
				parts = append(parts, col+" IS NULL")
			} else {
				parts = append(parts, col+" = "+next(c.value))
			}
		case OpNotExact:
			if c.value == nil {
				parts = append(parts, col+" IS NOT NULL")
			} else {
				parts = append(parts, col+" <> "+next(c.value))
			}
		case OpGt:
			parts = append(parts, col+" > "+next(c.value))
		case OpGte:
			parts = append(parts, col+" >= "+next(c.value))
		case OpLt:
			parts = append(parts, col+" < "+next(c.value))
		case OpLte:
			parts = append(parts, col+" <= "+next(c.value))
		case OpLike:
			parts = append(parts, col+" LIKE "+next(likePattern(c.value)))
		case OpILike:
			parts = append(parts, col+" ILIKE "+next(likePattern(c.value)))
		case OpIn:
			items := toSlice(c.value)
			if len(items) == 0 {
				parts = append(parts, "FALSE")
				continue
			}
			ph := make([]string, len(items))
			for i, it := range items {
				ph[i] = next(it)
			}
			parts = append(parts, col+" IN ("+strings.Join(ph, ", ")+")")
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func likePattern(v any) string {
	return "%" + fmt.Sprint(v) + "%"
}

func toSlice(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// match evaluates conditions in memory. get returns the value of a column.
func match(conds []condition, get func(string) any) bool {
	for _, c := range conds {
		v := get(c.column)
		switch c.op {
		case OpExact:
			if c.value == nil {
				if !isNull(v) {
					return false
				}
				continue
			}
			if isNull(v) || compare(v, c.value) != 0 {
				return false
			}
		case OpNotExact:
			if c.value == nil {
				if isNull(v) {
					return false
				}
				continue
			}
			if isNull(v) || compare(v, c.value) == 0 {
				return false
			}
		case OpGt:
			if isNull(v) || compare(v, c.value) <= 0 {
				return false
			}
		case OpGte:
			if isNull(v) || compare(v, c.value) < 0 {
				return false
			}
		case OpLt:
			if isNull(v) || compare(v, c.value) >= 0 {
				return false
			}
		case OpLte:
			if isNull(v) || compare(v, c.value) > 0 {
				return false
			}
		case OpLike:
			if isNull(v) || !strings.Contains(fmt.Sprint(deref(v)), fmt.Sprint(c.value)) {
				return false
			}
		case OpILike:
			if isNull(v) || !strings.Contains(strings.ToLower(fmt.Sprint(deref(v))), strings.ToLower(fmt.Sprint(c.value))) {
				return false
			}
		case OpIn:
			if isNull(v) {
				return false
			}
			found := false
			for _, it := range toSlice(c.value) {
				if compare(v, it) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

// compare orders two scalar values. Numbers compare numerically across
// types, times chronologically, bools false<true, anything else as strings.
func compare(a, b any) int {
	a, b = deref(a), deref(b)
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
