package database

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// fieldByName finds the struct field whose firestore tag name is name.
func fieldByName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("firestore"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// normalize reduces a value to nil, string, bool, int64 or float64 so that
// named types, pointers and timestamps compare the way the database does.
func normalize(v reflect.Value) interface{} {
	if !v.IsValid() {
		return nil
	}
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Type() == timeType {
		return v.Interface().(time.Time).UnixNano()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return v.Interface()
}

// compareValues orders normalized values; nil sorts before everything.
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case int64:
		switch bv := b.(type) {
		case int64:
			return cmpOrdered(av, bv)
		case float64:
			return cmpOrdered(float64(av), bv)
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return cmpOrdered(av, bv)
		case int64:
			return cmpOrdered(av, float64(bv))
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func matchesAll(doc reflect.Value, filters []Filter) (bool, error) {
	for _, f := range filters {
		field, ok := fieldByName(doc, f.Field)
		if !ok {
			return false, fmt.Errorf("memory store: %s has no field %q", doc.Type(), f.Field)
		}
		if !matches(normalize(field), f) {
			return false, nil
		}
	}
	return true, nil
}

func matches(value interface{}, f Filter) bool {
	if f.Op == OpIn {
		list := reflect.ValueOf(f.Value)
		if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < list.Len(); i++ {
			if value != nil && compareValues(value, normalize(list.Index(i))) == 0 {
				return true
			}
		}
		return false
	}

	want := normalize(reflect.ValueOf(f.Value))
	if f.Op == OpEqual {
		if value == nil || want == nil {
			return value == nil && want == nil
		}
		return compareValues(value, want) == 0
	}

	// Range filters never match missing values.
	if value == nil {
		return false
	}
	c := compareValues(value, want)
	switch f.Op {
	case OpGreaterThan:
		return c > 0
	case OpGreaterOrEqual:
		return c >= 0
	case OpLessThan:
		return c < 0
	case OpLessOrEqual:
		return c <= 0
	}
	return false
}
