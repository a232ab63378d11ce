package database

import (
	"fmt"
	"sort"

	ierr "go-firestore-ratings/internal/errors"
	"go-firestore-ratings/internal/repository/filter"
	"go-firestore-ratings/internal/repository/ops"
)

func validateQuery(q Query) error {
	if err := q.Collection.Validate(); err != nil {
		return fmt.Errorf("validate query: %w", err)
	}
	if q.Limit < 0 {
		return fmt.Errorf("validate query: %w, negative limit", ierr.InvalidInput)
	}
	for _, w := range q.Where {
		switch w.Op {
		case ops.Equal, ops.NotEqual, ops.Greater, ops.GreaterOrEqual, ops.Less, ops.LessOrEqual, ops.ArrayContains, ops.In:
		default:
			return fmt.Errorf("validate query: %w, unsupported operator %q", ierr.InvalidInput, w.Op)
		}
		if _, err := normalizeValue(w.Value); err != nil {
			return fmt.Errorf("validate query: %w", err)
		}
	}
	return nil
}

// match reports whether the document fields satisfy every where clause.
// A clause on a missing field never matches.
func match(fields map[string]interface{}, where []filter.Where) bool {
	for _, w := range where {
		v, ok := fields[w.Path]
		if !ok {
			return false
		}
		want, err := normalizeValue(w.Value)
		if err != nil {
			return false
		}
		if !matchOne(v, w.Op, want) {
			return false
		}
	}
	return true
}

func matchOne(v interface{}, op string, want interface{}) bool {
	switch op {
	case ops.Equal:
		return compareValues(v, want) == 0
	case ops.NotEqual:
		return compareValues(v, want) != 0
	case ops.ArrayContains:
		arr, ok := v.([]interface{})
		if !ok {
			return false
		}
		for _, e := range arr {
			if compareValues(e, want) == 0 {
				return true
			}
		}
		return false
	case ops.In:
		candidates, ok := want.([]interface{})
		if !ok {
			return false
		}
		for _, c := range candidates {
			if compareValues(v, c) == 0 {
				return true
			}
		}
		return false
	}

	// range comparisons only hold between values of the same kind
	if rankOf(v) != rankOf(want) {
		return false
	}
	c := compareValues(v, want)
	switch op {
	case ops.Greater:
		return c > 0
	case ops.GreaterOrEqual:
		return c >= 0
	case ops.Less:
		return c < 0
	case ops.LessOrEqual:
		return c <= 0
	}
	return false
}

// evaluate filters, orders and limits docs in place. Documents lacking an order-by
// field are left out, and ties fall back to the document id.
func evaluate(q Query, docs []Document) []Document {
	out := docs[:0]
	for _, d := range docs {
		if !match(d.Fields, q.Where) {
			continue
		}
		if !hasOrderFields(d.Fields, q.OrderBy) {
			continue
		}
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.OrderBy {
			c := compareValues(out[i].Fields[o.Path], out[j].Fields[o.Path])
			if c == 0 {
				continue
			}
			if o.Direction == filter.Desc {
				return c > 0
			}
			return c < 0
		}
		return out[i].Path.ID() < out[j].Path.ID()
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func hasOrderFields(fields map[string]interface{}, orderBy []filter.OrderBy) bool {
	for _, o := range orderBy {
		if _, ok := fields[o.Path]; !ok {
			return false
		}
	}
	return true
}
