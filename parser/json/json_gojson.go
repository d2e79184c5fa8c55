//go:build !wiremux_sonic

package jsonparser

import "github.com/goccy/go-json"

type goJSONAPI struct{}

func (goJSONAPI) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (goJSONAPI) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func defaultJSONAPI() JSONAPI { return goJSONAPI{} }
