package jsonparser

// JSONAPI abstracts the JSON backend so that an alternative
// implementation can be selected with a build tag.
type JSONAPI interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
