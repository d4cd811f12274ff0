package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeJSONL renders values one JSON object per line, no trailing
// newline. Empty input yields an empty document.
func EncodeJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	for i, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal line %d: %w", i, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// DecodeJSONL parses a JSONL document, skipping blank lines.
func DecodeJSONL[T any](data []byte) ([]T, error) {
	var items []T
	for i, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", i+1, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// CountLines counts non-blank lines in a JSONL document.
func CountLines(data []byte) int {
	count := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
