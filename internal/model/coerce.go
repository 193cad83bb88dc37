package model

import (
	"encoding/json"
	"math/bits"
	"strconv"
)

// unsigned is the set of integer widths used by the schema.
type unsigned interface {
	~uint16 | ~uint32 | ~uint64
}

// parseUnsigned parses s as a base-10 T. The bit size comes from T itself,
// so "70000" fails for uint16 but not for uint32. Signs, whitespace and the
// empty string are rejected.
func parseUnsigned[T unsigned](s string) (T, error) {
	var zero T
	n, err := strconv.ParseUint(s, 10, bits.Len64(uint64(^zero)))
	if err != nil {
		return zero, err
	}
	return T(n), nil
}

// coerced decodes a field whose numeric value is quoted in the source,
// e.g. "capacity": "1000000". The JSON value must be a string; its text is
// then parsed as T.
func coerced[T unsigned](f field, dst *T) error {
	if got := kindOf(f.raw); got != jsonString {
		return typeMismatch(f.path, jsonString, got)
	}
	var s string
	if err := json.Unmarshal(f.raw, &s); err != nil {
		return fieldParse(f.path, string(f.raw), err)
	}
	v, err := parseUnsigned[T](s)
	if err != nil {
		return fieldParse(f.path, s, err)
	}
	*dst = v
	return nil
}

// native decodes an unquoted JSON number into T. Fractions, exponents,
// negative numbers and values wider than T fail with a parse error that
// carries the literal.
func native[T unsigned](f field, dst *T) error {
	if got := kindOf(f.raw); got != jsonNumber {
		return typeMismatch(f.path, jsonNumber, got)
	}
	v, err := parseUnsigned[T](string(f.raw))
	if err != nil {
		return fieldParse(f.path, string(f.raw), err)
	}
	*dst = v
	return nil
}
