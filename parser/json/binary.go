package jsonparser

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/wiremux/wiremux/parser"
)

var (
	errInvalidPlaceholder = fmt.Errorf("parser/json: invalid placeholder")
	errUnexpectedFrame    = fmt.Errorf("parser/json: unexpected attachment frame")
)

type placeholder struct {
	Placeholder bool `json:"_placeholder"`
	Num         int  `json:"num"`
}

// deconstruct replaces every binary fragment in v with a placeholder
// object and collects the fragments as attachment frames, in placeholder
// number order.
func deconstruct(v []any) (data []any, attachments [][]byte, err error) {
	data = make([]any, len(v))
	for i := range v {
		data[i], err = deconstructValue(reflect.ValueOf(v[i]), &attachments)
		if err != nil {
			return nil, nil, err
		}
	}
	return
}

func deconstructValue(rv reflect.Value, attachments *[][]byte) (any, error) {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	if !rv.IsValid() {
		return nil, nil
	}

	rt := rv.Type()

	if rt.Implements(binaryAttachmentReflectType) || rt == byteSliceReflectType {
		buf := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(buf), rv)
		p := placeholder{Placeholder: true, Num: len(*attachments)}
		*attachments = append(*attachments, buf)
		return p, nil
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if !parser.HasBinary(rv.Interface()) {
			return rv.Interface(), nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := deconstructValue(rv.Index(i), attachments)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case reflect.Map:
		if !parser.HasBinary(rv.Interface()) {
			return rv.Interface(), nil
		}
		if rt.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("parser/json: binary fragments require string map keys")
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			v, err := deconstructValue(iter.Value(), attachments)
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = v
		}
		return out, nil
	case reflect.Struct:
		if !parser.HasBinary(rv.Interface()) {
			return rv.Interface(), nil
		}
		out := make(map[string]any, rt.NumField())
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			name := f.Name
			if tag, ok := f.Tag.Lookup("json"); ok {
				tagName, _, _ := strings.Cut(tag, ",")
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			v, err := deconstructValue(rv.Field(i), attachments)
			if err != nil {
				return nil, err
			}
			out[name] = v
		}
		return out, nil
	default:
		return rv.Interface(), nil
	}
}

var (
	binaryAttachmentReflectType = reflect.TypeOf((*interface{ BinaryAttachment() bool })(nil)).Elem()
	byteSliceReflectType        = reflect.TypeOf([]byte(nil))
)

// reconstructor buffers a decoded binary packet header until all of its
// attachment frames have arrived, then splices the attachments back in
// place of the placeholders.
type reconstructor struct {
	packet      *parser.Packet
	attachments [][]byte
}

func newReconstructor(packet *parser.Packet) *reconstructor {
	return &reconstructor{packet: packet}
}

func (r *reconstructor) addAttachment(data []byte) (packet *parser.Packet, done bool, err error) {
	if len(r.attachments) >= r.packet.Attachments {
		return nil, false, errUnexpectedFrame
	}
	r.attachments = append(r.attachments, data)

	if len(r.attachments) < r.packet.Attachments {
		return nil, false, nil
	}

	for i := range r.packet.Data {
		r.packet.Data[i], err = r.reconstructValue(r.packet.Data[i])
		if err != nil {
			return nil, false, err
		}
	}
	return r.packet, true, nil
}

func (r *reconstructor) reconstructValue(v any) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		if isPlaceholder(v) {
			num, ok := v["num"].(float64)
			if !ok || int(num) < 0 || int(num) >= len(r.attachments) {
				return nil, errInvalidPlaceholder
			}
			return parser.Binary(r.attachments[int(num)]), nil
		}
		for k, e := range v {
			e, err := r.reconstructValue(e)
			if err != nil {
				return nil, err
			}
			v[k] = e
		}
		return v, nil
	case []any:
		for i, e := range v {
			e, err := r.reconstructValue(e)
			if err != nil {
				return nil, err
			}
			v[i] = e
		}
		return v, nil
	default:
		return v, nil
	}
}

func isPlaceholder(m map[string]any) bool {
	p, ok := m["_placeholder"].(bool)
	return ok && p
}
