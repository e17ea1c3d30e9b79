package codec

import (
	"github.com/goccy/go-json"

	"bookmarksync/internal/domain"
)

// JSONCodec is a human-readable alternative, handy when tapping the bus
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return FormatJSON
}

// Encode serializes an envelope
func (c *JSONCodec) Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Decode parses an envelope
func (c *JSONCodec) Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, &domain.SerializationError{Err: err}
	}
	if err := validate(env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
