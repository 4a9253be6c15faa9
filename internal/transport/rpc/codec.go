// Package rpc defines the wire messages exchanged between DHT nodes and
// between a client and any node, plus the gRPC service descriptors that
// dispatch them. No protoc toolchain is available in this environment, so
// unlike the teacher's internal/api/dht/v1 generated package, messages
// here are plain Go structs and the gRPC codec is a hand-registered JSON
// encoder standing in for the default proto codec (see DESIGN.md).
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements encoding.Codec by marshaling arbitrary Go values as
// JSON. It is registered under the name "proto" so that grpc.NewServer and
// grpc.NewClient pick it up as the default codec without either side
// needing to generate or link real protobuf message types.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal: %w", err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return "proto" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
