// Package geocodec binds JSON token streams to the geo model and back.
//
// Decoders pull tokens from a jsontok.Cursor, accept members in any order
// and skip members they do not know. A decode failure aborts the whole
// document; nothing is retried or defaulted. Failures caused by the data
// itself wrap one of the sentinel errors below.
package geocodec

import "errors"

var (
	// ErrMalformedGeometry reports a coordinate array with unexpected
	// tokens, the wrong nesting for its type, or no closing bracket.
	ErrMalformedGeometry = errors.New("malformed geometry")

	// ErrUnsupportedGeometry reports a geometry whose type is missing or
	// not one this package decodes or encodes.
	ErrUnsupportedGeometry = errors.New("unsupported geometry")

	// ErrUnsupportedRecord reports a record whose type is not "Feature".
	ErrUnsupportedRecord = errors.New("unsupported record type")

	// ErrMissingRecordType reports a record object without a type member.
	ErrMissingRecordType = errors.New("missing record type")
)
