package riak

import (
	"errors"
)

var ErrNoServers = errors.New("riak: no servers available")

// Servers provides the list of node addresses ("host:port").
// The list may change over time; the client reads it on every request.
type Servers interface {
	List() []string
}

type staticServers struct {
	addresses []string
}

// NewStaticServers returns a fixed server list.
func NewStaticServers(addresses ...string) Servers {
	return &staticServers{addresses: addresses}
}

func (s *staticServers) List() []string {
	return s.addresses
}
