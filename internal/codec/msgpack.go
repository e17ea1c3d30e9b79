package codec

import (
	"github.com/vmihailenco/msgpack/v5"

	"bookmarksync/internal/domain"
)

// MsgpackCodec is the default wire format
type MsgpackCodec struct{}

// NewMsgpackCodec creates a new msgpack codec
func NewMsgpackCodec() *MsgpackCodec {
	return &MsgpackCodec{}
}

// Format returns the codec format identifier
func (c *MsgpackCodec) Format() string {
	return FormatMsgpack
}

// Encode serializes an envelope
func (c *MsgpackCodec) Encode(env Envelope) ([]byte, error) {
	return msgpack.Marshal(env)
}

// Decode parses an envelope, rejecting anything that is not a complete one
func (c *MsgpackCodec) Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, &domain.SerializationError{Err: err}
	}
	if err := validate(env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
