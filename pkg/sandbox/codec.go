package sandbox

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc's encoding package so the Sandbox Event
// Bridge can move plain Go structs over the wire instead of requiring a
// protoc-generated message type for a handful of JSON-shaped fields.
const codecName = "sandboxjson"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements grpc/encoding.Codec with encoding/json, the same way
// grpc-gateway registers a JSON codec alongside the default proto one.
type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("sandbox: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("sandbox: unmarshal into %T: %w", v, err)
	}
	return nil
}
