package parser

import (
	"errors"
	"reflect"
)

// Binary marks a byte slice as an out-of-band binary attachment.
// Use this instead of []byte when emitting binary data.
type Binary []byte

func (b Binary) BinaryAttachment() bool { return true }

func (b Binary) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	return b, nil
}

func (b *Binary) UnmarshalJSON(data []byte) error {
	if b == nil {
		return errors.New("parser: Binary: UnmarshalJSON on nil pointer")
	}
	*b = append((*b)[0:0], data...)
	return nil
}

type binaryAttachment interface {
	BinaryAttachment() bool
}

var (
	binaryAttachmentType = reflect.TypeOf((*binaryAttachment)(nil)).Elem()
	byteSliceType        = reflect.TypeOf([]byte(nil))
)

// HasBinary reports whether v contains a binary fragment anywhere in its
// value tree. The sender cannot know whether a packet needs out-of-band
// attachment frames without this scan, so packet type selection (event vs
// binary event, ack vs binary ack) is driven by it.
func HasBinary(v any) bool {
	if v == nil {
		return false
	}
	return hasBinary(reflect.ValueOf(v))
}

func hasBinary(rv reflect.Value) bool {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}

	if !rv.IsValid() {
		return false
	}

	rt := rv.Type()
	if rt.Implements(binaryAttachmentType) || rt == byteSliceType {
		return true
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if hasBinary(rv.Index(i)) {
				return true
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if hasBinary(iter.Value()) {
				return true
			}
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if rt.Field(i).IsExported() && hasBinary(rv.Field(i)) {
				return true
			}
		}
	}
	return false
}
