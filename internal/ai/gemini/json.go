package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DecodeJSON parses a model reply into target. Markdown fences around the
// JSON are tolerated and loosely typed values ("7" for 7) are converted.
func DecodeJSON(raw string, target any) error {
	cleaned := ExtractJSON(raw)

	var data any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return fmt.Errorf("parse gemini response: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           target,
	})
	if err != nil {
		return err
	}

	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

// ExtractJSON strips markdown code fences and any prose around a JSON value.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	start := strings.IndexAny(raw, "{[")
	if start <= 0 {
		return raw
	}
	closing := "}"
	if raw[start] == '[' {
		closing = "]"
	}
	if end := strings.LastIndex(raw, closing); end > start {
		return raw[start : end+1]
	}
	return raw
}
