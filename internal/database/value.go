package database

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	ierr "go-firestore-ratings/internal/errors"
)

// normalizeFields converts a field map to the value model of the memory engine, which
// mirrors what the firestore client returns: nil, bool, int64, float64, string,
// time.Time in UTC, []interface{} and map[string]interface{}.
func normalizeFields(fields map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if k == "" {
			return nil, fmt.Errorf("normalize fields: %w, empty field name", ierr.InvalidInput)
		}
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("normalize field %s: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, float64:
		return t, nil
	case int:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case time.Time:
		return t.UTC(), nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			ne, err := normalizeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	case map[string]interface{}:
		return normalizeFields(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeValue(rv.Elem().Interface())
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64: %w", u, ierr.InvalidInput)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []interface{}{}, nil
		}
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ne, err := normalizeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ne, err := normalizeValue(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = ne
		}
		return out, nil
	}

	return nil, fmt.Errorf("unsupported field value %T: %w", v, ierr.InvalidInput)
}

func cloneFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]interface{}:
		return cloneFields(t)
	default:
		return v
	}
}

// type ranks follow the firestore value ordering
const (
	rankNull = iota
	rankBool
	rankNumber
	rankTime
	rankString
	rankArray
	rankMap
)

func rankOf(v interface{}) int {
	switch v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case int64, float64:
		return rankNumber
	case time.Time:
		return rankTime
	case string:
		return rankString
	case []interface{}:
		return rankArray
	default:
		return rankMap
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// compareValues orders two normalized values; values of different kinds order by kind.
func compareValues(a, b interface{}) int {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch ra {
	case rankNull:
		return 0
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankNumber:
		ai, aok := a.(int64)
		bi, bok := b.(int64)
		if aok && bok {
			return cmpInt64(ai, bi)
		}
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankArray:
		aa, ba := a.([]interface{}), b.([]interface{})
		for i := 0; i < len(aa) && i < len(ba); i++ {
			if c := compareValues(aa[i], ba[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(aa), len(ba))
	default:
		am, aok := a.(map[string]interface{})
		bm, bok := b.(map[string]interface{})
		if !aok || !bok {
			return 0
		}
		ak, bk := sortedKeys(am), sortedKeys(bm)
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if c := strings.Compare(ak[i], bk[i]); c != 0 {
				return c
			}
			if c := compareValues(am[ak[i]], bm[bk[i]]); c != 0 {
				return c
			}
		}
		return cmpInt(len(ak), len(bk))
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cmpInt(a, b int) int {
	return cmpInt64(int64(a), int64(b))
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
