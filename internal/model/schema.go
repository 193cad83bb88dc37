package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/netip"
	"strconv"
)

// JSON value types as reported in type-mismatch errors.
const (
	jsonString  = "string"
	jsonNumber  = "number"
	jsonObject  = "object"
	jsonArray   = "array"
	jsonBoolean = "boolean"
	jsonNull    = "null"
)

// kindOf reports the JSON type of an already-validated value.
func kindOf(raw json.RawMessage) string {
	raw = bytes.TrimLeft(raw, " \t\r\n")
	if len(raw) == 0 {
		return jsonNull
	}
	switch raw[0] {
	case '"':
		return jsonString
	case '{':
		return jsonObject
	case '[':
		return jsonArray
	case 't', 'f':
		return jsonBoolean
	case 'n':
		return jsonNull
	}
	return jsonNumber
}

// field is one JSON value together with its qualified path from the
// document root.
type field struct {
	path string
	raw  json.RawMessage
}

func (f field) child(name string) field {
	if f.path == "" {
		return field{path: name}
	}
	return field{path: f.path + "." + name}
}

func (f field) index(i int) field {
	return field{path: f.path + "[" + strconv.Itoa(i) + "]"}
}

// errDuplicateField is the cause of a field_parse error for a known key
// that appears twice in one object.
var errDuplicateField = errors.New("duplicate field")

// rule declares how one key of an object is decoded into T.
type rule[T any] struct {
	name     string
	optional bool
	decode   func(dst *T, f field) error
}

// schema is the ordered field table for one entity type.
type schema[T any] []rule[T]

func (s schema[T]) lookup(name string) int {
	for i := range s {
		if s[i].name == name {
			return i
		}
	}
	return -1
}

// decode walks the members of the object in f in document order, applying
// the matching rule to each and skipping unknown keys. A known key given
// twice is a field_parse error. After the walk the first absent required
// field, in declaration order, is reported.
func (s schema[T]) decode(f field, dst *T) error {
	members, err := objectMembers(f)
	if err != nil {
		return err
	}
	seen := make([]bool, len(s))
	for _, m := range members {
		i := s.lookup(m.key)
		if i < 0 {
			continue
		}
		child := f.child(m.key)
		if seen[i] {
			return fieldParse(child.path, m.key, errDuplicateField)
		}
		seen[i] = true
		child.raw = m.value
		if err := s[i].decode(dst, child); err != nil {
			return err
		}
	}
	for i, r := range s {
		if !seen[i] && !r.optional {
			return missingField(f.child(r.name).path)
		}
	}
	return nil
}

type member struct {
	key   string
	value json.RawMessage
}

// objectMembers splits a JSON object into its members, keeping the order in
// which they appear.
func objectMembers(f field) ([]member, error) {
	if got := kindOf(f.raw); got != jsonObject {
		return nil, typeMismatch(f.path, jsonObject, got)
	}
	dec := json.NewDecoder(bytes.NewReader(f.raw))
	if _, err := dec.Token(); err != nil {
		return nil, syntaxError(f.raw, err)
	}
	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, syntaxError(f.raw, err)
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, syntaxError(f.raw, err)
		}
		members = append(members, member{key: key, value: value})
	}
	return members, nil
}

// array decodes a JSON array of T, each element with s, preserving order.
// An empty array yields an empty, non-nil slice.
func array[T any](s schema[T]) func(f field, dst *[]T) error {
	return func(f field, dst *[]T) error {
		if got := kindOf(f.raw); got != jsonArray {
			return typeMismatch(f.path, jsonArray, got)
		}
		var elems []json.RawMessage
		if err := json.Unmarshal(f.raw, &elems); err != nil {
			return syntaxError(f.raw, err)
		}
		out := make([]T, len(elems))
		for i, raw := range elems {
			elem := f.index(i)
			elem.raw = raw
			if err := s.decode(elem, &out[i]); err != nil {
				return err
			}
		}
		*dst = out
		return nil
	}
}

// optional decodes a nullable object: null leaves dst nil. Absence is
// handled by marking the rule optional.
func optional[T any](s schema[T]) func(f field, dst **T) error {
	return func(f field, dst **T) error {
		if kindOf(f.raw) == jsonNull {
			*dst = nil
			return nil
		}
		v := new(T)
		if err := s.decode(f, v); err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func str(f field, dst *string) error {
	if got := kindOf(f.raw); got != jsonString {
		return typeMismatch(f.path, jsonString, got)
	}
	if err := json.Unmarshal(f.raw, dst); err != nil {
		return fieldParse(f.path, string(f.raw), err)
	}
	return nil
}

func boolean(f field, dst *bool) error {
	if got := kindOf(f.raw); got != jsonBoolean {
		return typeMismatch(f.path, jsonBoolean, got)
	}
	return json.Unmarshal(f.raw, dst)
}

// addrPort decodes an "ip:port" string. IPv6 hosts must be bracketed.
func addrPort(f field, dst *netip.AddrPort) error {
	var s string
	if err := str(f, &s); err != nil {
		return err
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return fieldParse(f.path, s, err)
	}
	*dst = ap
	return nil
}
