package riak

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pior/riak/pb"
)

// Quorum is a replica count for R/W/PR/PW/DW/RW parameters.
// The zero value leaves the bucket property in effect.
type Quorum uint32

const (
	QuorumOne     = Quorum(pb.QuorumOne)
	QuorumQuorum  = Quorum(pb.QuorumQuorum)
	QuorumAll     = Quorum(pb.QuorumAll)
	QuorumDefault = Quorum(pb.QuorumDefault)
)

// DefaultContentType is used by StoreValue when none is given.
const DefaultContentType = "application/octet-stream"

// InvalidOptionError is returned when command options fail validation.
// Nothing was sent.
type InvalidOptionError struct {
	Field   string
	Message string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("riak: invalid %s: %s", e.Field, e.Message)
}

// ShouldCloseConnection returns false - the request never reached the wire
func (e *InvalidOptionError) ShouldCloseConnection() bool {
	return false
}

func required(field, value string) error {
	if value == "" {
		return &InvalidOptionError{Field: field, Message: "is required"}
	}
	return nil
}

func validTimeout(d time.Duration) error {
	if d < 0 {
		return &InvalidOptionError{Field: "Timeout", Message: "must not be negative"}
	}
	if d.Milliseconds() > math.MaxUint32 {
		return &InvalidOptionError{Field: "Timeout", Message: "exceeds the protocol maximum"}
	}
	return nil
}

func millis(d time.Duration) uint32 {
	return uint32(d.Milliseconds())
}

func optionalBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

// FetchOptions configures FetchValue.
type FetchOptions struct {
	BucketType string
	Bucket     string
	Key        string

	R  Quorum
	PR Quorum

	// NotFoundOK and BasicQuorum override the bucket properties when set.
	NotFoundOK  *bool
	BasicQuorum *bool

	// HeadOnly returns metadata without values.
	HeadOnly bool

	// IfModified is a vclock; the response is marked unchanged when it matches.
	IfModified []byte

	// ReturnDeletedVClock returns the tombstone vclock for deleted keys.
	ReturnDeletedVClock bool

	Timeout time.Duration
}

// Validate checks the options before anything is encoded.
func (o FetchOptions) Validate() error {
	return errors.Join(
		required("Bucket", o.Bucket),
		required("Key", o.Key),
		validTimeout(o.Timeout),
	)
}

// StoreOptions configures StoreValue.
type StoreOptions struct {
	BucketType string
	Bucket     string

	// Key may be empty, the server then generates one and returns it.
	Key string

	Value           []byte
	ContentType     string
	Charset         string
	ContentEncoding string
	UserMeta        map[string]string
	Indexes         map[string][]string

	// VClock from a previous fetch, to resolve siblings.
	VClock []byte

	W  Quorum
	DW Quorum
	PW Quorum

	ReturnBody  bool
	ReturnHead  bool
	IfNoneMatch bool

	Timeout time.Duration
}

// Validate checks the options before anything is encoded.
func (o StoreOptions) Validate() error {
	return errors.Join(
		required("Bucket", o.Bucket),
		validTimeout(o.Timeout),
	)
}

// DeleteOptions configures DeleteValue.
type DeleteOptions struct {
	BucketType string
	Bucket     string
	Key        string
	VClock     []byte

	RW Quorum
	R  Quorum
	W  Quorum
	PR Quorum
	PW Quorum
	DW Quorum

	Timeout time.Duration
}

// Validate checks the options before anything is encoded.
func (o DeleteOptions) Validate() error {
	return errors.Join(
		required("Bucket", o.Bucket),
		required("Key", o.Key),
		validTimeout(o.Timeout),
	)
}

// ListBucketsOptions configures ListBuckets.
type ListBucketsOptions struct {
	BucketType string

	// Stream asks the server to send the bucket list in chunks.
	Stream bool

	// OnBuckets, when set, receives each chunk instead of the command
	// accumulating the full list. Chunks are delivered in order from a
	// separate goroutine, outside the connection lock, and the command
	// completes after the last call returns.
	OnBuckets func(buckets []string)

	Timeout time.Duration
}

// Validate checks the options before anything is encoded.
func (o ListBucketsOptions) Validate() error {
	return validTimeout(o.Timeout)
}

// ListKeysOptions configures ListKeys.
type ListKeysOptions struct {
	BucketType string
	Bucket     string

	// OnKeys, when set, receives each chunk instead of the command
	// accumulating the full list. Chunks are delivered in order from a
	// separate goroutine, outside the connection lock, and the command
	// completes after the last call returns.
	OnKeys func(keys []string)

	Timeout time.Duration
}

// Validate checks the options before anything is encoded.
func (o ListKeysOptions) Validate() error {
	return errors.Join(
		required("Bucket", o.Bucket),
		validTimeout(o.Timeout),
	)
}
