package codec

import "google.golang.org/protobuf/proto"

// Protobuf is a Codec for generated protobuf messages. Encoding is
// deterministic so equal messages produce equal entries; unknown fields
// written by a newer schema are dropped on decode.
type Protobuf[T proto.Message] struct {
	alloc func() T
}

// NewProtobuf takes a constructor for empty messages, e.g.
// func() *pb.User { return &pb.User{} }.
func NewProtobuf[T proto.Message](alloc func() T) Protobuf[T] {
	return Protobuf[T]{alloc: alloc}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.alloc()
	err := proto.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(b, m)
	return m, err
}
