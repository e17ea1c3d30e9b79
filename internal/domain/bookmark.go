package domain

import (
	"sort"
	"strings"
)

// Bookmark is an opaque causal token issued by the datastore after a commit.
// It marks a point in the write history of one database.
type Bookmark string

// BookmarkSet is an immutable set of bookmarks for one logical database.
// The zero value is an empty set and is ready to use.
type BookmarkSet struct {
	values map[Bookmark]struct{}
}

// NewBookmarkSet builds a set from raw token values, dropping duplicates and empty strings
func NewBookmarkSet(values ...string) BookmarkSet {
	if len(values) == 0 {
		return BookmarkSet{}
	}
	m := make(map[Bookmark]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		m[Bookmark(v)] = struct{}{}
	}
	if len(m) == 0 {
		return BookmarkSet{}
	}
	return BookmarkSet{values: m}
}

// Len returns the number of bookmarks in the set
func (s BookmarkSet) Len() int {
	return len(s.values)
}

// IsEmpty reports whether the set holds no bookmarks
func (s BookmarkSet) IsEmpty() bool {
	return len(s.values) == 0
}

// Contains reports whether b is a member of the set
func (s BookmarkSet) Contains(b Bookmark) bool {
	_, ok := s.values[b]
	return ok
}

// ContainsAll reports whether other is a subset of s
func (s BookmarkSet) ContainsAll(other BookmarkSet) bool {
	if other.Len() > s.Len() {
		return false
	}
	for b := range other.values {
		if _, ok := s.values[b]; !ok {
			return false
		}
	}
	return true
}

// Union returns the set of bookmarks present in either s or other.
// When other adds nothing, s itself is returned.
func (s BookmarkSet) Union(other BookmarkSet) BookmarkSet {
	if s.ContainsAll(other) {
		return s
	}
	if other.ContainsAll(s) {
		return other
	}
	m := make(map[Bookmark]struct{}, len(s.values)+len(other.values))
	for b := range s.values {
		m[b] = struct{}{}
	}
	for b := range other.values {
		m[b] = struct{}{}
	}
	return BookmarkSet{values: m}
}

// Equal reports whether both sets hold exactly the same bookmarks
func (s BookmarkSet) Equal(other BookmarkSet) bool {
	return s.Len() == other.Len() && s.ContainsAll(other)
}

// Values returns the raw token values in sorted order
func (s BookmarkSet) Values() []string {
	out := make([]string, 0, len(s.values))
	for b := range s.values {
		out = append(out, string(b))
	}
	sort.Strings(out)
	return out
}

// String renders the set for logs
func (s BookmarkSet) String() string {
	return "{" + strings.Join(s.Values(), ", ") + "}"
}
