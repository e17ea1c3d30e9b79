// Package codec serializes bookmark broadcasts for the bus.
package codec

import (
	"errors"
	"fmt"
	"time"

	"bookmarksync/internal/domain"
)

// Envelope is one broadcast: the bookmarks a peer wants everybody to see for one database
type Envelope struct {
	Database  string    `msgpack:"database" json:"database"`
	Origin    string    `msgpack:"origin" json:"origin,omitempty"`
	Bookmarks []string  `msgpack:"bookmarks" json:"bookmarks"`
	SentAt    time.Time `msgpack:"sent_at" json:"sent_at"`
}

// NewEnvelope wraps a bookmark set for broadcast
func NewEnvelope(database, origin string, set domain.BookmarkSet) Envelope {
	return Envelope{
		Database:  database,
		Origin:    origin,
		Bookmarks: set.Values(),
		SentAt:    time.Now().UTC(),
	}
}

// Set returns the envelope's bookmarks as a set
func (e Envelope) Set() domain.BookmarkSet {
	return domain.NewBookmarkSet(e.Bookmarks...)
}

// Codec converts envelopes to and from bytes.
// Decode failures are always *domain.SerializationError.
type Codec interface {
	Encode(env Envelope) ([]byte, error)
	Decode(data []byte) (Envelope, error)
	Format() string
}

// Format names accepted by ForFormat
const (
	FormatMsgpack = "msgpack"
	FormatJSON    = "json"
)

// ForFormat returns the codec for a configured format name
func ForFormat(format string) (Codec, error) {
	switch format {
	case "", FormatMsgpack:
		return NewMsgpackCodec(), nil
	case FormatJSON:
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec format %q", format)
	}
}

func validate(env Envelope) error {
	if env.Database == "" {
		return &domain.SerializationError{Err: errors.New("envelope has no database")}
	}
	return nil
}
