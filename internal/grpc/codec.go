package grpc

import "fmt"

// RawCodecName is the content subtype of RawCodec.
const RawCodecName = "proto"

// RawMessage is a protobuf message kept in its wire form. Callers encode and decode it with
// protowire, so no generated code is needed for small services.
type RawMessage []byte

// RawCodec passes *RawMessage values through unchanged. It registers under the proto name so
// peers see ordinary protobuf traffic.
type RawCodec struct{}

func (RawCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(*RawMessage)
	if !ok {
		return nil, fmt.Errorf("raw codec: cannot marshal %T", v)
	}

	return *m, nil
}

func (RawCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(*RawMessage)
	if !ok {
		return fmt.Errorf("raw codec: cannot unmarshal into %T", v)
	}
	*m = append((*m)[:0], data...)

	return nil
}

func (RawCodec) Name() string {
	return RawCodecName
}
