package dto

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// ScoreInput accepts a score as a JSON number, a numeric string, an empty
// string or null. Set tracks whether the field appeared in the payload so
// partial updates can tell "absent" apart from "cleared".
type ScoreInput struct {
	Set     bool
	Value   *float64
	Invalid bool
	Raw     string
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ScoreInput) UnmarshalJSON(data []byte) error {
	s.Set = true
	s.Value = nil
	s.Invalid = false

	trimmed := bytes.TrimSpace(data)
	s.Raw = string(trimmed)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			s.Invalid = true
			return nil
		}
		text = strings.TrimSpace(text)
		s.Raw = text
		if text == "" {
			return nil
		}
		return s.assign(strconv.ParseFloat(text, 64))
	}

	var value float64
	if err := json.Unmarshal(trimmed, &value); err != nil {
		s.Invalid = true
		return nil
	}
	return s.assign(value, nil)
}

// MarshalJSON renders the parsed value, or null.
func (s ScoreInput) MarshalJSON() ([]byte, error) {
	if s.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*s.Value)
}

func (s *ScoreInput) assign(value float64, err error) error {
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		s.Invalid = true
		return nil
	}
	s.Value = &value
	return nil
}

// Score builds a ScoreInput holding value, mainly for programmatic callers.
func Score(value float64) ScoreInput {
	return ScoreInput{Set: true, Value: &value}
}

// NullableUint distinguishes an absent identifier from an explicit null.
type NullableUint struct {
	Set   bool
	Value *uint
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableUint) UnmarshalJSON(data []byte) error {
	n.Set = true
	n.Value = nil

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var value uint
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return err
	}
	n.Value = &value
	return nil
}

// MarshalJSON renders the value, or null.
func (n NullableUint) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}
