package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/edgeshift/internal/errors"
)

func text(payload any) (string, error) {
	switch v := payload.(type) {
	case string:
		return v, nil
	case map[string]any:
		if s, ok := v["text"].(string); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: expected a string or {\"text\": string} payload", errors.ErrLocalExecution)
}

// Uppercase returns the payload text in upper case.
func Uppercase(_ context.Context, payload any) (any, error) {
	s, err := text(payload)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s), nil
}

// WordCount returns the number of whitespace-separated words.
func WordCount(_ context.Context, payload any) (any, error) {
	s, err := text(payload)
	if err != nil {
		return nil, err
	}
	return len(strings.Fields(s)), nil
}
