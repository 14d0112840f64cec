package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// decodePayload parses a JSON object cell into flat string fields. Nested
// objects are flattened with dotted keys; arrays are kept as JSON text.
func decodePayload(cell string) (map[string]string, error) {
	dec := json.NewDecoder(strings.NewReader(cell))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("decode payload: not an object")
	}
	out := make(map[string]string, len(obj))
	if err := flatten(out, "", obj); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(out map[string]string, prefix string, obj map[string]any) error {
	for k, v := range obj {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		switch val := v.(type) {
		case nil:
			out[name] = ""
		case string:
			out[name] = val
		case json.Number:
			out[name] = val.String()
		case bool:
			out[name] = strconv.FormatBool(val)
		case map[string]any:
			if err := flatten(out, name, val); err != nil {
				return err
			}
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return fmt.Errorf("encode payload field %s: %w", name, err)
			}
			out[name] = string(b)
		}
	}
	return nil
}

// merge copies payload fields into the row. A non-empty row cell wins.
func merge(row, payload map[string]string) {
	for k, v := range payload {
		if cur, ok := row[k]; ok && strings.TrimSpace(cur) != "" {
			continue
		}
		row[k] = v
	}
}
