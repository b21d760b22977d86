package externalapi

import (
	"regexp"
	"sort"
)

// SourceID identifies a reference chain, e.g. "btc" or "eth".
type SourceID string

// SelfSourceID is the key under which the distance against the local
// chain's self reference is reported. It can never collide with a
// configured source because configured ids may not contain '@'.
const SelfSourceID SourceID = "@self"

var sourceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{1,32}$`)

// IsValid returns whether the id may be used for a configured source.
func (id SourceID) IsValid() bool {
	return sourceIDPattern.MatchString(string(id))
}

func (id SourceID) String() string {
	return string(id)
}

// SortSourceIDs sorts the given ids in place and returns them.
func SortSourceIDs(ids []SourceID) []SourceID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
