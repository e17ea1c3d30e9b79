package codec

import (
	"testing"

	"bookmarksync/internal/domain"
)

func codecs() []Codec {
	return []Codec{NewMsgpackCodec(), NewJSONCodec()}
}

func TestRoundTripPreservesSet(t *testing.T) {
	set := domain.NewBookmarkSet("FB:kcwQ1", "FB:kcwQ2", "sqlite:movies:7")

	for _, c := range codecs() {
		t.Run(c.Format(), func(t *testing.T) {
			data, err := c.Encode(NewEnvelope("movies", "instance-a", set))
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			env, err := c.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if env.Database != "movies" || env.Origin != "instance-a" {
				t.Errorf("envelope header = %q/%q", env.Database, env.Origin)
			}
			if !env.Set().Equal(set) {
				t.Errorf("Set() = %v, want %v", env.Set(), set)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, c := range codecs() {
		good, err := c.Encode(NewEnvelope("movies", "a", domain.NewBookmarkSet("x")))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}

		inputs := map[string][]byte{
			"truncated": good[:len(good)/2],
			"garbage":   []byte{0xc1, 0xff, 0x00},
			"empty":     {},
		}

		for name, data := range inputs {
			t.Run(c.Format()+"/"+name, func(t *testing.T) {
				_, err := c.Decode(data)
				if err == nil {
					t.Fatal("expected an error")
				}
				if !domain.IsSerialization(err) {
					t.Errorf("expected SerializationError, got %T: %v", err, err)
				}
			})
		}
	}
}

func TestDecodeRequiresDatabase(t *testing.T) {
	for _, c := range codecs() {
		data, err := c.Encode(Envelope{Bookmarks: []string{"x"}})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if _, err := c.Decode(data); !domain.IsSerialization(err) {
			t.Errorf("%s: expected SerializationError for missing database, got %v", c.Format(), err)
		}
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{"", "msgpack", false},
		{"msgpack", "msgpack", false},
		{"json", "json", false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		c, err := ForFormat(tt.format)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ForFormat(%q) expected error", tt.format)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ForFormat(%q): %v", tt.format, err)
		}
		if c.Format() != tt.want {
			t.Errorf("ForFormat(%q).Format() = %q, want %q", tt.format, c.Format(), tt.want)
		}
	}
}
