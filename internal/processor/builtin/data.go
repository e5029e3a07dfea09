package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/edgeshift/internal/errors"
)

type numbersPayload struct {
	Items []float64 `json:"items"`
}

func numbers(payload any) ([]float64, error) {
	var p numbersPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	return p.Items, nil
}

var errEmpty = fmt.Errorf("%w: no items", errors.ErrLocalExecution)

// Sum returns the sum of the items.
func Sum(_ context.Context, payload any) (any, error) {
	items, err := numbers(payload)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, v := range items {
		total += v
	}
	return total, nil
}

// Average returns the arithmetic mean of the items.
func Average(ctx context.Context, payload any) (any, error) {
	items, err := numbers(payload)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errEmpty
	}
	total, _ := Sum(ctx, items)
	return total.(float64) / float64(len(items)), nil
}

// Max returns the largest item.
func Max(_ context.Context, payload any) (any, error) {
	items, err := numbers(payload)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errEmpty
	}
	m := items[0]
	for _, v := range items[1:] {
		m = max(m, v)
	}
	return m, nil
}

// Min returns the smallest item.
func Min(_ context.Context, payload any) (any, error) {
	items, err := numbers(payload)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errEmpty
	}
	m := items[0]
	for _, v := range items[1:] {
		m = min(m, v)
	}
	return m, nil
}

// Count returns the number of items, whatever their type.
func Count(_ context.Context, payload any) (any, error) {
	var p struct {
		Items []any `json:"items"`
	}
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	return len(p.Items), nil
}

// Predicate selects items. Field is a top-level key of object items; empty
// compares the item itself. Op is one of eq, ne, gt, gte, lt, lte, contains.
type Predicate struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

type filterPayload struct {
	Items     []any     `json:"items"`
	Predicate Predicate `json:"predicate"`
}

// Filter returns the items matching the payload's predicate.
func Filter(_ context.Context, payload any) (any, error) {
	var p filterPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if p.Predicate.Op == "" {
		return nil, fmt.Errorf("%w: predicate op is required", errors.ErrLocalExecution)
	}

	out := make([]any, 0, len(p.Items))
	for _, item := range p.Items {
		ok, err := p.Predicate.Match(item)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// Match reports whether item satisfies the predicate.
func (p Predicate) Match(item any) (bool, error) {
	subject := item
	if p.Field != "" {
		obj, ok := item.(map[string]any)
		if !ok {
			return false, nil
		}
		if subject, ok = obj[p.Field]; !ok {
			return false, nil
		}
	}

	switch p.Op {
	case "eq":
		return equal(subject, p.Value), nil
	case "ne":
		return !equal(subject, p.Value), nil
	case "contains":
		s, ok := subject.(string)
		return ok && strings.Contains(s, fmt.Sprint(p.Value)), nil
	case "gt", "gte", "lt", "lte":
		a, aok := toFloat(subject)
		b, bok := toFloat(p.Value)
		if !aok || !bok {
			return false, nil
		}
		switch p.Op {
		case "gt":
			return a > b, nil
		case "gte":
			return a >= b, nil
		case "lt":
			return a < b, nil
		default:
			return a <= b, nil
		}
	}
	return false, fmt.Errorf("%w: unknown predicate op %q", errors.ErrLocalExecution, p.Op)
}

func equal(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
