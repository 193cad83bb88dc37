package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors for programmatic error checking via errors.Is().
var (
	// ErrSyntax indicates the input is not well-formed JSON.
	ErrSyntax = errors.New("syntax error")

	// ErrMissingField indicates a required field or top-level key is absent.
	ErrMissingField = errors.New("missing field")

	// ErrTypeMismatch indicates a value has the wrong JSON type for its field.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrFieldParse indicates a field's text failed its parse rule.
	ErrFieldParse = errors.New("field parse error")
)

// ErrorKind classifies a DecodeError.
type ErrorKind string

const (
	KindSyntax       ErrorKind = "syntax"
	KindMissingField ErrorKind = "missing_field"
	KindTypeMismatch ErrorKind = "type_mismatch"
	KindFieldParse   ErrorKind = "field_parse"
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	return string(k)
}

// sentinel maps the kind onto its package-level sentinel error.
func (k ErrorKind) sentinel() error {
	switch k {
	case KindSyntax:
		return ErrSyntax
	case KindMissingField:
		return ErrMissingField
	case KindTypeMismatch:
		return ErrTypeMismatch
	case KindFieldParse:
		return ErrFieldParse
	}
	return nil
}

// DecodeError is the single error type returned by Decode. Which fields are
// populated depends on Kind:
//
//   - KindSyntax: Offset, Line, Column and the tokenizer's Err
//   - KindMissingField: Field
//   - KindTypeMismatch: Field, Want, Got
//   - KindFieldParse: Field, Text and the parser's Err
//
// Field is qualified from the document root, e.g. "edges[3].capacity".
type DecodeError struct {
	Kind   ErrorKind
	Field  string
	Want   string // expected JSON type
	Got    string // JSON type encountered
	Text   string // offending text
	Offset int64  // byte offset into the input
	Line   int    // 1-based
	Column int    // 1-based, in bytes
	Err    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	prefix := e.Kind.sentinel()
	if prefix == nil {
		prefix = errors.New("decode error")
	}
	switch e.Kind {
	case KindSyntax:
		msg := fmt.Sprintf("%s at line %d, column %d", prefix, e.Line, e.Column)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	case KindMissingField:
		return fmt.Sprintf("%s: %s", prefix, e.Field)
	case KindTypeMismatch:
		return fmt.Sprintf("%s: %s: expected %s, got %s", prefix, e.Field, e.Want, e.Got)
	case KindFieldParse:
		msg := fmt.Sprintf("%s: %s: invalid value %q", prefix, e.Field, e.Text)
		if reason := parseReason(e.Err); reason != "" {
			msg += ": " + reason
		}
		return msg
	}
	return prefix.Error()
}

// Is matches the sentinel error for the kind, so errors.Is(err, ErrFieldParse)
// works on a *DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// parseReason strips strconv's function/input prefix, which would repeat
// the offending text already in the message.
func parseReason(err error) string {
	if err == nil {
		return ""
	}
	var ne *strconv.NumError
	if errors.As(err, &ne) {
		return ne.Err.Error()
	}
	return err.Error()
}

func missingField(field string) error {
	return &DecodeError{Kind: KindMissingField, Field: field}
}

func typeMismatch(field, want, got string) error {
	return &DecodeError{Kind: KindTypeMismatch, Field: field, Want: want, Got: got}
}

func fieldParse(field, text string, err error) error {
	return &DecodeError{Kind: KindFieldParse, Field: field, Text: text, Err: err}
}

// syntaxError converts a tokenizer error into a positioned DecodeError.
func syntaxError(data []byte, err error) error {
	de := &DecodeError{Kind: KindSyntax, Err: err}
	var se *json.SyntaxError
	if errors.As(err, &se) {
		de.Offset = se.Offset
	} else {
		de.Offset = int64(len(data))
	}
	de.Line, de.Column = position(data, de.Offset)
	return de
}

// position converts a byte offset into a 1-based line and column. The
// json tokenizer reports the offset just past the offending byte.
func position(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col = 1, 1
	for i := int64(0); i < offset-1; i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
