package riak

import (
	"time"

	"github.com/pior/riak/pb"
)

// Object is one value stored under a key, with its metadata.
// A key with siblings is fetched as several Objects.
type Object struct {
	Value           []byte
	ContentType     string
	Charset         string
	ContentEncoding string
	VTag            string
	LastModified    time.Time
	UserMeta        map[string]string
	Indexes         map[string][]string
	Deleted         bool
}

func objectFromContent(c *pb.Content) Object {
	o := Object{
		Value:           c.Value,
		ContentType:     string(c.ContentType),
		Charset:         string(c.Charset),
		ContentEncoding: string(c.ContentEncoding),
		VTag:            string(c.VTag),
		Deleted:         c.Deleted,
	}
	if c.LastMod != 0 {
		o.LastModified = time.Unix(int64(c.LastMod), int64(c.LastModUsecs)*int64(time.Microsecond))
	}
	if len(c.UserMeta) > 0 {
		o.UserMeta = make(map[string]string, len(c.UserMeta))
		for _, p := range c.UserMeta {
			o.UserMeta[string(p.Key)] = string(p.Value)
		}
	}
	if len(c.Indexes) > 0 {
		o.Indexes = make(map[string][]string, len(c.Indexes))
		for _, p := range c.Indexes {
			o.Indexes[string(p.Key)] = append(o.Indexes[string(p.Key)], string(p.Value))
		}
	}
	return o
}

func objectsFromContent(contents []pb.Content) []Object {
	if len(contents) == 0 {
		return nil
	}
	objects := make([]Object, len(contents))
	for i := range contents {
		objects[i] = objectFromContent(&contents[i])
	}
	return objects
}

// FetchResult is the outcome of FetchValue.
type FetchResult struct {
	// Objects holds one entry per sibling. Empty when not found.
	Objects []Object

	// VClock must be sent back with the next store or delete of this key.
	VClock []byte

	// NotFound is true when the key does not exist.
	NotFound bool

	// Unchanged is true when IfModified matched the current vclock.
	Unchanged bool
}

// HasSiblings reports whether the key holds conflicting values.
func (r *FetchResult) HasSiblings() bool {
	return len(r.Objects) > 1
}

// StoreResult is the outcome of StoreValue.
type StoreResult struct {
	// Key is set when the server generated the key.
	Key string

	VClock []byte

	// Objects is set when ReturnBody or ReturnHead was requested.
	Objects []Object
}

// ServerInfo is the outcome of GetServerInfo.
type ServerInfo struct {
	Node          string
	ServerVersion string
}
