package identity

import (
	"fmt"
)

// codecErrorPrefix marks decode failures; grpc surfaces them only as status text
const codecErrorPrefix = "identity codec"

// wireMessage is implemented by the contract messages in this package
type wireMessage interface {
	marshalWire() []byte
	unmarshalWire([]byte) error
}

// Codec encodes the IdentityService messages in protobuf wire format.
// It reports the "proto" content-subtype so it interoperates with
// protoc-generated servers and clients.
type Codec struct{}

// Marshal implements encoding.Codec
func (Codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("%s: cannot marshal %T", codecErrorPrefix, v)
	}
	return m.marshalWire(), nil
}

// Unmarshal implements encoding.Codec
func (Codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("%s: cannot unmarshal into %T", codecErrorPrefix, v)
	}
	if err := m.unmarshalWire(data); err != nil {
		return fmt.Errorf("%s: %w", codecErrorPrefix, err)
	}
	return nil
}

// Name implements encoding.Codec
func (Codec) Name() string {
	return "proto"
}
