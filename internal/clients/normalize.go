package clients

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
)

// toSnake converts a camelCase key to snake_case. Keys already in
// snake_case are returned unchanged.
func toSnake(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	runes := []rune(key)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func snakeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[toSnake(k)] = snakeKeys(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = snakeKeys(t[i])
		}
		return t
	default:
		return v
	}
}

// normalizeKeys rewrites every object key in data to snake_case.
func normalizeKeys(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(snakeKeys(v))
}

// decodeSnake normalizes data and decodes it into out.
func decodeSnake(data []byte, out any) error {
	normalized, err := normalizeKeys(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, out)
}
