package rpc

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype under which disttable messages are exchanged
const CodecName = "disttable"

func init() {
	encoding.RegisterCodec(codec{})
}

// codec marshals the hand-encoded Messages of this package
type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("Cannot marshal %T: not a disttable message", v)
	}
	return m.Marshal()
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("Cannot unmarshal into %T: not a disttable message", v)
	}
	return m.Unmarshal(data)
}

func (codec) Name() string {
	return CodecName
}

// withCodec prepends the disttable content-subtype to a set of call options
func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
