package config

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// JSONCParser is a koanf.Parser for JSON with comments and trailing
// commas. Comments are stripped with github.com/tidwall/jsonc before the
// document is handed to encoding/json, so plain JSON parses unchanged.
type JSONCParser struct{}

// JSONC returns a JSONC parser for koanf.
func JSONC() *JSONCParser {
	return &JSONCParser{}
}

// Unmarshal parses JSONC bytes into a nested map.
func (p *JSONCParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal(jsonc.ToJSON(b), &out); err != nil {
		return nil, fmt.Errorf("invalid JSONC: %w", err)
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

// Marshal encodes a nested map as indented JSON. Comments are not preserved.
func (p *JSONCParser) Marshal(o map[string]interface{}) ([]byte, error) {
	return json.MarshalIndent(o, "", "  ")
}
