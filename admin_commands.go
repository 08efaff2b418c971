package riak

import (
	"github.com/pior/riak/pb"
)

// Ping checks that the node answers.
type Ping struct {
	result[struct{}]
}

var _ Awaitable = (*Ping)(nil)

func NewPing() *Ping {
	cmd := &Ping{}
	cmd.init()
	return cmd
}

func (c *Ping) Encode() (byte, []byte, error) {
	return pb.CodePingReq, nil, nil
}

func (c *Ping) ExpectedCode() byte {
	return pb.CodePingResp
}

func (c *Ping) OnFrame(payload []byte) (bool, error) {
	c.complete(struct{}{})
	return true, nil
}

// GetServerInfo returns the node name and server version.
type GetServerInfo struct {
	result[ServerInfo]
}

var _ Awaitable = (*GetServerInfo)(nil)

func NewGetServerInfo() *GetServerInfo {
	cmd := &GetServerInfo{}
	cmd.init()
	return cmd
}

func (c *GetServerInfo) Encode() (byte, []byte, error) {
	return pb.CodeGetServerInfoReq, nil, nil
}

func (c *GetServerInfo) ExpectedCode() byte {
	return pb.CodeGetServerInfoResp
}

func (c *GetServerInfo) OnFrame(payload []byte) (bool, error) {
	var resp pb.GetServerInfoResp
	if err := resp.Unmarshal(payload); err != nil {
		return false, err
	}
	c.complete(ServerInfo{
		Node:          string(resp.Node),
		ServerVersion: string(resp.ServerVersion),
	})
	return true, nil
}

// ListBuckets lists the buckets of a bucket type. With Stream set the
// response spans several frames.
type ListBuckets struct {
	result[[]string]
	req       pb.ListBucketsReq
	chunks    *chunkQueue
	buckets   []string
}

var _ Awaitable = (*ListBuckets)(nil)

// NewListBuckets validates opts and builds the command.
func NewListBuckets(opts ListBucketsOptions) (*ListBuckets, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cmd := &ListBuckets{
		req: pb.ListBucketsReq{
			Type:    optionalBytes(opts.BucketType),
			Stream:  opts.Stream,
			Timeout: millis(opts.Timeout),
		},
		chunks:    newChunkQueue(opts.OnBuckets),
	}
	cmd.init()
	return cmd, nil
}

func (c *ListBuckets) Encode() (byte, []byte, error) {
	return pb.CodeListBucketsReq, c.req.Marshal(), nil
}

func (c *ListBuckets) ExpectedCode() byte {
	return pb.CodeListBucketsResp
}

func (c *ListBuckets) OnFrame(payload []byte) (bool, error) {
	var resp pb.ListBucketsResp
	if err := resp.Unmarshal(payload); err != nil {
		return false, err
	}

	chunk := toStrings(resp.Buckets)
	if c.chunks != nil {
		if len(chunk) > 0 {
			c.chunks.push(chunk)
		}
	} else {
		c.buckets = append(c.buckets, chunk...)
	}

	// a non-streamed listing is a single frame without the done flag
	if resp.Done || !c.req.Stream {
		buckets := c.buckets
		c.chunks.settle(func() { c.complete(buckets) })
		return true, nil
	}
	return false, nil
}

// OnError fails the command once the chunks already received are delivered.
func (c *ListBuckets) OnError(err error) {
	c.chunks.settle(func() { c.result.OnError(err) })
}

// ListKeys lists the keys of a bucket. The response always spans several
// frames, the last one carrying the done flag.
type ListKeys struct {
	result[[]string]
	req    pb.ListKeysReq
	chunks *chunkQueue
	keys   []string
}

var _ Awaitable = (*ListKeys)(nil)

// NewListKeys validates opts and builds the command.
func NewListKeys(opts ListKeysOptions) (*ListKeys, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cmd := &ListKeys{
		req: pb.ListKeysReq{
			Type:    optionalBytes(opts.BucketType),
			Bucket:  []byte(opts.Bucket),
			Timeout: millis(opts.Timeout),
		},
		chunks: newChunkQueue(opts.OnKeys),
	}
	cmd.init()
	return cmd, nil
}

func (c *ListKeys) Encode() (byte, []byte, error) {
	return pb.CodeListKeysReq, c.req.Marshal(), nil
}

func (c *ListKeys) ExpectedCode() byte {
	return pb.CodeListKeysResp
}

func (c *ListKeys) OnFrame(payload []byte) (bool, error) {
	var resp pb.ListKeysResp
	if err := resp.Unmarshal(payload); err != nil {
		return false, err
	}

	chunk := toStrings(resp.Keys)
	if c.chunks != nil {
		if len(chunk) > 0 {
			c.chunks.push(chunk)
		}
	} else {
		c.keys = append(c.keys, chunk...)
	}

	if resp.Done {
		keys := c.keys
		c.chunks.settle(func() { c.complete(keys) })
		return true, nil
	}
	return false, nil
}

// OnError fails the command once the chunks already received are delivered.
func (c *ListKeys) OnError(err error) {
	c.chunks.settle(func() { c.result.OnError(err) })
}

func toStrings(bs [][]byte) []string {
	if len(bs) == 0 {
		return nil
	}
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}
