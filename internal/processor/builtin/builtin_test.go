package builtin

import (
	"context"
	"testing"

	"github.com/Iron-Ham/edgeshift/internal/errors"
	"github.com/Iron-Ham/edgeshift/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	items := map[string]any{"items": []any{1, 2, 3, 4, 5}}

	tests := []struct {
		name string
		fn   processor.Func
		in   any
		want any
	}{
		{"sum", Sum, items, 15.0},
		{"sum of bare list", Sum, []int{1, 2, 3, 4, 5}, 15.0},
		{"sum of empty", Sum, map[string]any{"items": []any{}}, 0.0},
		{"average", Average, items, 3.0},
		{"max", Max, []float64{2, 9.5, -1}, 9.5},
		{"min", Min, []float64{2, 9.5, -1}, -1.0},
		{"count mixed", Count, []any{1, "a", nil}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregates_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Average(ctx, []float64{})
	assert.ErrorIs(t, err, errors.ErrLocalExecution)

	_, err = Sum(ctx, map[string]any{"items": []any{"x"}})
	assert.ErrorIs(t, err, errors.ErrLocalExecution)

	_, err = Max(ctx, "not a list")
	assert.ErrorIs(t, err, errors.ErrLocalExecution)
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	people := []any{
		map[string]any{"name": "ana", "age": 31},
		map[string]any{"name": "bo", "age": 17},
		map[string]any{"name": "cyd"},
	}

	tests := []struct {
		name      string
		items     []any
		predicate map[string]any
		want      int
	}{
		{"gte on field", people, map[string]any{"field": "age", "op": "gte", "value": 18}, 1},
		{"eq on string field", people, map[string]any{"field": "name", "op": "eq", "value": "bo"}, 1},
		{"ne on string field", people, map[string]any{"field": "name", "op": "ne", "value": "bo"}, 2},
		{"contains", people, map[string]any{"field": "name", "op": "contains", "value": "y"}, 1},
		{"scalar items", []any{1, 5, 10}, map[string]any{"op": "gt", "value": 4}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filter(ctx, map[string]any{"items": tt.items, "predicate": tt.predicate})
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	t.Run("unknown op", func(t *testing.T) {
		_, err := Filter(ctx, map[string]any{"items": []any{1}, "predicate": map[string]any{"op": "regex"}})
		assert.ErrorIs(t, err, errors.ErrLocalExecution)
	})

	t.Run("missing op", func(t *testing.T) {
		_, err := Filter(ctx, map[string]any{"items": []any{1}})
		assert.ErrorIs(t, err, errors.ErrLocalExecution)
	})
}

func TestText(t *testing.T) {
	ctx := context.Background()

	got, err := Uppercase(ctx, "edge shift")
	require.NoError(t, err)
	assert.Equal(t, "EDGE SHIFT", got)

	got, err = WordCount(ctx, map[string]any{"text": "  one two\tthree\n"})
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	_, err = WordCount(ctx, 42)
	assert.ErrorIs(t, err, errors.ErrLocalExecution)
}

func TestRegister(t *testing.T) {
	r := processor.NewRegistry()
	Register(r)

	assert.Equal(t, []string{
		"data.average", "data.count", "data.filter", "data.max", "data.min", "data.sum",
		"text.uppercase", "text.wordcount",
	}, r.Keys())

	fn, err := r.Lookup("data", "sum")
	require.NoError(t, err)
	got, err := fn(context.Background(), map[string]any{"items": []any{1, 2, 3, 4, 5}})
	require.NoError(t, err)
	assert.Equal(t, 15.0, got)
}
