package parser

import (
	"bytes"
	"encoding/json"
	"math"
)

// Fields is a decoded JSON object with typed, validating accessors.
// Every accessor reports (value, present, error); null counts as absent.
type Fields map[string]json.RawMessage

type tokenKind int

const (
	tokenNull tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenObject
	tokenArray
)

func kindOf(raw json.RawMessage) tokenKind {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return tokenNull
	}
	switch raw[0] {
	case '"':
		return tokenString
	case '{':
		return tokenObject
	case '[':
		return tokenArray
	case 't', 'f':
		return tokenBool
	case 'n':
		return tokenNull
	default:
		return tokenNumber
	}
}

// DecodeObject decodes raw JSON into Fields
func DecodeObject(raw []byte) (Fields, error) {
	if kindOf(raw) != tokenObject {
		return nil, Invalidf("payload must be a JSON object")
	}
	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, Invalidf("malformed JSON: %v", err)
	}
	return f, nil
}

// Has reports whether key is present and not null
func (f Fields) Has(key string) bool {
	raw, ok := f[key]
	return ok && kindOf(raw) != tokenNull
}

// String returns a string field
func (f Fields) String(key string) (string, bool, error) {
	if !f.Has(key) {
		return "", false, nil
	}
	raw := f[key]
	if kindOf(raw) != tokenString {
		return "", true, Invalidf("field '%s' must be a string", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", true, Invalidf("field '%s' must be a string", key)
	}
	return s, true, nil
}

// Float returns a finite numeric field
func (f Fields) Float(key string) (float64, bool, error) {
	if !f.Has(key) {
		return 0, false, nil
	}
	v, err := floatValue(f[key])
	if err != nil {
		return 0, true, Invalidf("field '%s' %s", key, err.Reason)
	}
	return v, true, nil
}

// Int returns an integral numeric field. 3 and 3.0 are accepted, 3.5 is not.
func (f Fields) Int(key string) (int64, bool, error) {
	if !f.Has(key) {
		return 0, false, nil
	}
	v, err := intValue(f[key])
	if err != nil {
		return 0, true, Invalidf("field '%s' %s", key, err.Reason)
	}
	return v, true, nil
}

// Object returns a nested object field
func (f Fields) Object(key string) (Fields, bool, error) {
	if !f.Has(key) {
		return nil, false, nil
	}
	raw := f[key]
	if kindOf(raw) != tokenObject {
		return nil, true, Invalidf("field '%s' must be an object", key)
	}
	var nested Fields
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, true, Invalidf("field '%s' must be an object", key)
	}
	return nested, true, nil
}

// Array returns the raw elements of an array field
func (f Fields) Array(key string) ([]json.RawMessage, bool, error) {
	if !f.Has(key) {
		return nil, false, nil
	}
	raw := f[key]
	if kindOf(raw) != tokenArray {
		return nil, true, Invalidf("field '%s' must be an array", key)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, true, Invalidf("field '%s' must be an array", key)
	}
	return items, true, nil
}

// IntTuple decodes a JSON array of exactly n integral numbers
func IntTuple(raw json.RawMessage, n int) ([]int64, error) {
	if kindOf(raw) != tokenArray {
		return nil, Invalidf("must be an array of %d numbers", n)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) != n {
		return nil, Invalidf("must be an array of %d numbers", n)
	}
	values := make([]int64, n)
	for i, item := range items {
		v, err := intValue(item)
		if err != nil {
			return nil, Invalidf("element %d %s", i, err.Reason)
		}
		values[i] = v
	}
	return values, nil
}

func floatValue(raw json.RawMessage) (float64, *ValidationError) {
	if kindOf(raw) != tokenNumber {
		return 0, Invalidf("must be a number")
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, Invalidf("must be a finite number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, Invalidf("must be a finite number")
	}
	return v, nil
}

func intValue(raw json.RawMessage) (int64, *ValidationError) {
	if kindOf(raw) != tokenNumber {
		return 0, Invalidf("must be an integer")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, Invalidf("must be an integer")
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
		return 0, Invalidf("must be an integer")
	}
	return int64(f), nil
}
