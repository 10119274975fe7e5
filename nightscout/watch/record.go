package watch

import (
	"encoding/json"
	"errors"
	"math"
)

// record is the inner object of one top level group after the single item
// list wrapper has been removed.
type record struct {
	group  string
	fields map[string]interface{}
}

// normalize unwraps the source API's convention of wrapping every group in a
// one element list. Keys whose value is not a non-empty list of objects are
// skipped.
func normalize(raw map[string]interface{}) map[string]record {
	groups := make(map[string]record, len(raw))

	for key, value := range raw {
		var first interface{}

		switch list := value.(type) {
		case []interface{}:
			if len(list) == 0 {
				continue
			}
			first = list[0]
		case []map[string]interface{}:
			if len(list) == 0 {
				continue
			}
			first = list[0]
		default:
			continue
		}

		fields, ok := first.(map[string]interface{})
		if !ok {
			continue
		}

		groups[key] = record{group: key, fields: fields}
	}

	return groups
}

func (r record) value(field string) (interface{}, error) {
	value, ok := r.fields[field]
	if !ok || value == nil {
		return nil, &MissingFieldError{Group: r.group, Field: field}
	}

	return value, nil
}

func (r record) string(field string) (string, error) {
	value, err := r.value(field)
	if err != nil {
		return "", err
	}

	text, ok := value.(string)
	if !ok {
		return "", r.mismatch(field, "string", value, nil)
	}

	return text, nil
}

func (r record) number(field string) (float64, error) {
	value, err := r.value(field)
	if err != nil {
		return 0, err
	}

	switch number := value.(type) {
	case float64:
		return number, nil
	case float32:
		return float64(number), nil
	case int:
		return float64(number), nil
	case int32:
		return float64(number), nil
	case int64:
		return float64(number), nil
	case json.Number:
		parsed, err := number.Float64()
		if err != nil {
			return 0, r.mismatch(field, "number", value, err)
		}
		return parsed, nil
	default:
		return 0, r.mismatch(field, "number", value, nil)
	}
}

// Bounds of int as float64. Both are powers of two and exact, the upper one
// is excluded because float64(math.MaxInt) rounds up to it.
var (
	minIntFloat = float64(math.MinInt)
	maxIntFloat = -float64(math.MinInt)
)

// integer accepts any number without a fractional part that fits an int.
func (r record) integer(field string) (int, error) {
	value, err := r.value(field)
	if err != nil {
		return 0, err
	}

	switch number := value.(type) {
	case int:
		return number, nil
	case int32:
		return int(number), nil
	case int64:
		return int(number), nil
	case json.Number:
		if parsed, err := number.Int64(); err == nil {
			return int(parsed), nil
		}
	}

	parsed, err := r.number(field)
	if err != nil {
		var mismatch *TypeMismatchError
		if errors.As(err, &mismatch) {
			mismatch.Expected = "integer"
		}
		return 0, err
	}

	if math.IsInf(parsed, 0) || math.IsNaN(parsed) || parsed != math.Trunc(parsed) ||
		parsed < minIntFloat || parsed >= maxIntFloat {
		return 0, r.mismatch(field, "integer", value, nil)
	}

	return int(parsed), nil
}

// integerString reads a string field holding a base 10 integer.
func (r record) integerString(field string) (int, error) {
	text, err := r.string(field)
	if err != nil {
		return 0, err
	}

	parsed, err := StringToInt(text)
	if err != nil {
		return 0, r.mismatch(field, "integer string", text, err)
	}

	return parsed, nil
}

func (r record) mismatch(field, expected string, value interface{}, cause error) error {
	return &TypeMismatchError{
		Group:    r.group,
		Field:    field,
		Expected: expected,
		Value:    value,
		Err:      cause,
	}
}
