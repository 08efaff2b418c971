package riak

import (
	"github.com/pior/riak/internal"
	"github.com/zeebo/xxh3"
)

// ServerSelector picks the index of the server to use for a key.
type ServerSelector func(key string, serverCount int) int

// DefaultServerSelector uses Jump Hash over an xxh3 digest of the key.
// Adding a server only moves the keys that land on the new one.
func DefaultServerSelector(key string, serverCount int) int {
	return internal.JumpHash(xxh3.HashString(key), serverCount)
}

// staticSelector is used in tests to always select a specific server.
func staticSelector(index int) ServerSelector {
	return func(key string, serverCount int) int {
		return index % serverCount
	}
}
