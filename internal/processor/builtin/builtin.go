// Package builtin provides the small set of processors shipped with edgeshift:
// numeric aggregates over an item list, a typed filter, and two text helpers.
//
// Data processors accept either {"items": [...]} or a bare list as payload.
package builtin

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Iron-Ham/edgeshift/internal/errors"
	"github.com/Iron-Ham/edgeshift/internal/processor"
)

// Register adds every builtin processor to r.
func Register(r *processor.Registry) {
	r.Register("data", "sum", Sum)
	r.Register("data", "average", Average)
	r.Register("data", "max", Max)
	r.Register("data", "min", Min)
	r.Register("data", "count", Count)
	r.Register("data", "filter", Filter)
	r.Register("text", "uppercase", Uppercase)
	r.Register("text", "wordcount", WordCount)
}

// decode converts an arbitrary payload (already-decoded JSON/YAML or Go
// values) into dst via its JSON form. A bare list is treated as {"items": list}.
func decode(payload any, dst any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return invalidPayload(err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		data = append(append([]byte(`{"items":`), trimmed...), '}')
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return invalidPayload(err)
	}
	return nil
}

func invalidPayload(cause error) error {
	return errors.Wrap(fmt.Errorf("%w: %v", errors.ErrLocalExecution, cause), "invalid payload")
}
