//go:build wiremux_sonic

package jsonparser

import "github.com/bytedance/sonic"

type sonicAPI struct{}

func (sonicAPI) Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

func (sonicAPI) Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

func defaultJSONAPI() JSONAPI { return sonicAPI{} }
