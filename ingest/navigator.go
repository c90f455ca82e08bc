package ingest

import (
	"encoding/json"
	"io"

	"github.com/termhub/termsync/errors"
)

// ArrayScan is the outcome of navigating to a named array field.
type ArrayScan int

const (
	// ArrayFound means the decoder is positioned inside the target array.
	ArrayFound ArrayScan = iota
	// ArrayAbsent means the enclosing object (or stream) ended without the field.
	ArrayAbsent
	// ArrayStopped means the stop field was reached before the target field.
	ArrayStopped
)

// Navigator walks a JSON token stream to locate named array fields inside a
// top-level object, skipping any structure it does not recognize. It never
// buffers the document; memory stays bounded regardless of feed size.
//
// The navigator is re-entrant: after one array has been drained, ToArray may
// be called again to locate a later field on the same stream.
type Navigator struct {
	dec *json.Decoder
	// pending holds a field name that was consumed as a stop field but not
	// dispatched; the next ToArray call sees it first
	pending string
	started bool
}

// NewNavigator creates a navigator over r.
func NewNavigator(r io.Reader) *Navigator {
	return &Navigator{dec: json.NewDecoder(r)}
}

// Begin consumes the opening brace of the top-level object.
func (n *Navigator) Begin() error {
	if n.started {
		return nil
	}
	tok, err := n.dec.Token()
	if err != nil {
		return errors.Wrap(err, "document must start with an object")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("document must start with an object")
	}
	n.started = true
	return nil
}

// ToArray advances the stream until the named field's array value begins.
// Intervening fields are skipped structurally. When stopField is non-empty and
// encountered first, navigation returns ArrayStopped without consuming the
// stop field's value, so a later ToArray(stopField, ...) call resumes there.
//
// Returns an error when the named field's value is not an array, or when a
// nested object or array is truncated.
func (n *Navigator) ToArray(field, stopField string) (ArrayScan, error) {
	for {
		var key string
		if n.pending != "" {
			key = n.pending
			n.pending = ""
		} else {
			tok, err := n.dec.Token()
			if err == io.EOF {
				return ArrayAbsent, nil
			}
			if err != nil {
				return ArrayAbsent, errors.Wrap(err, "malformed document")
			}

			switch t := tok.(type) {
			case json.Delim:
				if t == '}' {
					// end of the enclosing object: nothing found
					return ArrayAbsent, nil
				}
				return ArrayAbsent, errors.Newf("unexpected %s in object", t)
			case string:
				key = t
			default:
				return ArrayAbsent, errors.Newf("unexpected token %v in object", tok)
			}
		}

		if key == field {
			tok, err := n.dec.Token()
			if err != nil {
				return ArrayAbsent, errors.Wrapf(err, "missing value for %s", field)
			}
			if d, ok := tok.(json.Delim); !ok || d != '[' {
				return ArrayAbsent, errors.Newf("%s must be a list", field)
			}
			return ArrayFound, nil
		}

		if stopField != "" && key == stopField {
			n.pending = key
			return ArrayStopped, nil
		}

		if err := n.skipValue(key); err != nil {
			return ArrayAbsent, err
		}
	}
}

// More reports whether the current array has another element.
func (n *Navigator) More() bool {
	return n.dec.More()
}

// Decode decodes the next array element into v.
func (n *Navigator) Decode(v any) error {
	return n.dec.Decode(v)
}

// EndArray consumes the closing bracket of the current array.
func (n *Navigator) EndArray() error {
	tok, err := n.dec.Token()
	if err != nil {
		return errors.Wrap(err, "missing end of array")
	}
	if d, ok := tok.(json.Delim); !ok || d != ']' {
		return errors.Newf("expected end of array, got %v", tok)
	}
	return nil
}

// skipValue consumes one complete value without interpreting it, tracking
// nesting depth through objects and arrays.
func (n *Navigator) skipValue(key string) error {
	tok, err := n.dec.Token()
	if err != nil {
		return errors.Wrapf(err, "missing value for %s", key)
	}

	d, ok := tok.(json.Delim)
	if !ok || (d != '{' && d != '[') {
		// scalar value, nothing left to consume
		return nil
	}

	depth := 1
	for depth > 0 {
		tok, err := n.dec.Token()
		if err == io.EOF {
			return errors.Newf("missing end of %s", key)
		}
		if err != nil {
			return errors.Wrapf(err, "malformed value for %s", key)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
