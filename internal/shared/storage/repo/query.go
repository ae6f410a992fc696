package repo

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Converter turns a raw query-string value into the column's Go type.
type Converter func(string) (any, error)

// ErrBadValue wraps conversion failures of query-string filters.
var ErrBadValue = errors.New("bad filter value")

func Int(raw string) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrBadValue, raw)
	}
	return n, nil
}

func Bool(raw string) (any, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a boolean", ErrBadValue, raw)
	}
	return b, nil
}

// FiltersFromQuery turns ?field=value&field__op=value into Filters. Keys in
// skip are ignored, as are empty values. Values for "in" are comma separated.
func FiltersFromQuery(values url.Values, convert map[string]Converter, skip ...string) (Filters, error) {
	skipped := make(map[string]struct{}, len(skip))
	for _, k := range skip {
		skipped[k] = struct{}{}
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := Filters{}
	for _, key := range keys {
		if _, ok := skipped[key]; ok {
			continue
		}
		raw := strings.TrimSpace(values.Get(key))
		if raw == "" {
			continue
		}
		col, op, hasOp := strings.Cut(key, "__")
		conv := convert[col]
		if conv == nil {
			conv = func(s string) (any, error) { return s, nil }
		}

		if !hasOp {
			v, err := conv(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", col, err)
			}
			out[col] = v
			continue
		}

		var v any
		if op == OpIn {
			parts := strings.Split(raw, ",")
			items := make([]any, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p == "" {
					continue
				}
				item, err := conv(p)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", col, err)
				}
				items = append(items, item)
			}
			v = items
		} else {
			converted, err := conv(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", col, err)
			}
			v = converted
		}

		ops, _ := out[col].(map[string]any)
		if ops == nil {
			if existing, ok := out[col]; ok {
				ops = map[string]any{OpExact: existing}
			} else {
				ops = map[string]any{}
			}
		}
		ops[op] = v
		out[col] = ops
	}
	return out, nil
}
