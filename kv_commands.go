package riak

import (
	"sort"

	"github.com/pior/riak/pb"
)

// FetchValue fetches the value(s) stored under a key.
type FetchValue struct {
	result[*FetchResult]
	req pb.GetReq
}

var _ Awaitable = (*FetchValue)(nil)

// NewFetchValue validates opts and builds the command.
func NewFetchValue(opts FetchOptions) (*FetchValue, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cmd := &FetchValue{
		req: pb.GetReq{
			Type:          optionalBytes(opts.BucketType),
			Bucket:        []byte(opts.Bucket),
			Key:           []byte(opts.Key),
			R:             uint32(opts.R),
			PR:            uint32(opts.PR),
			NotFoundOK:    opts.NotFoundOK,
			BasicQuorum:   opts.BasicQuorum,
			Head:          opts.HeadOnly,
			IfModified:    opts.IfModified,
			DeletedVClock: opts.ReturnDeletedVClock,
			Timeout:       millis(opts.Timeout),
		},
	}
	cmd.init()
	return cmd, nil
}

func (c *FetchValue) Encode() (byte, []byte, error) {
	return pb.CodeGetReq, c.req.Marshal(), nil
}

func (c *FetchValue) ExpectedCode() byte {
	return pb.CodeGetResp
}

func (c *FetchValue) OnFrame(payload []byte) (bool, error) {
	var resp pb.GetResp
	if err := resp.Unmarshal(payload); err != nil {
		return false, err
	}

	c.complete(&FetchResult{
		Objects:   objectsFromContent(resp.Content),
		VClock:    resp.VClock,
		NotFound:  len(resp.Content) == 0 && !resp.Unchanged,
		Unchanged: resp.Unchanged,
	})
	return true, nil
}

// StoreValue stores a value under a key.
type StoreValue struct {
	result[*StoreResult]
	req pb.PutReq
}

var _ Awaitable = (*StoreValue)(nil)

// NewStoreValue validates opts and builds the command.
func NewStoreValue(opts StoreOptions) (*StoreValue, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	value := opts.Value
	if value == nil {
		value = []byte{}
	}

	cmd := &StoreValue{
		req: pb.PutReq{
			Type:   optionalBytes(opts.BucketType),
			Bucket: []byte(opts.Bucket),
			Key:    optionalBytes(opts.Key),
			VClock: opts.VClock,
			Content: pb.Content{
				Value:           value,
				ContentType:     []byte(contentType),
				Charset:         optionalBytes(opts.Charset),
				ContentEncoding: optionalBytes(opts.ContentEncoding),
				UserMeta:        pairsFromMap(opts.UserMeta),
				Indexes:         pairsFromMultiMap(opts.Indexes),
			},
			W:           uint32(opts.W),
			DW:          uint32(opts.DW),
			PW:          uint32(opts.PW),
			ReturnBody:  opts.ReturnBody,
			ReturnHead:  opts.ReturnHead,
			IfNoneMatch: opts.IfNoneMatch,
			Timeout:     millis(opts.Timeout),
		},
	}
	cmd.init()
	return cmd, nil
}

func (c *StoreValue) Encode() (byte, []byte, error) {
	return pb.CodePutReq, c.req.Marshal(), nil
}

func (c *StoreValue) ExpectedCode() byte {
	return pb.CodePutResp
}

func (c *StoreValue) OnFrame(payload []byte) (bool, error) {
	var resp pb.PutResp
	if err := resp.Unmarshal(payload); err != nil {
		return false, err
	}

	c.complete(&StoreResult{
		Key:     string(resp.Key),
		VClock:  resp.VClock,
		Objects: objectsFromContent(resp.Content),
	})
	return true, nil
}

// DeleteValue deletes a key.
type DeleteValue struct {
	result[struct{}]
	req pb.DelReq
}

var _ Awaitable = (*DeleteValue)(nil)

// NewDeleteValue validates opts and builds the command.
func NewDeleteValue(opts DeleteOptions) (*DeleteValue, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cmd := &DeleteValue{
		req: pb.DelReq{
			Type:    optionalBytes(opts.BucketType),
			Bucket:  []byte(opts.Bucket),
			Key:     []byte(opts.Key),
			VClock:  opts.VClock,
			RW:      uint32(opts.RW),
			R:       uint32(opts.R),
			W:       uint32(opts.W),
			PR:      uint32(opts.PR),
			PW:      uint32(opts.PW),
			DW:      uint32(opts.DW),
			Timeout: millis(opts.Timeout),
		},
	}
	cmd.init()
	return cmd, nil
}

func (c *DeleteValue) Encode() (byte, []byte, error) {
	return pb.CodeDelReq, c.req.Marshal(), nil
}

func (c *DeleteValue) ExpectedCode() byte {
	return pb.CodeDelResp
}

func (c *DeleteValue) OnFrame(payload []byte) (bool, error) {
	c.complete(struct{}{})
	return true, nil
}

// pairsFromMap sorts by key so encoding is deterministic.
func pairsFromMap(m map[string]string) []pb.Pair {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]pb.Pair, len(keys))
	for i, k := range keys {
		pairs[i] = pb.Pair{Key: []byte(k), Value: []byte(m[k])}
	}
	return pairs
}

func pairsFromMultiMap(m map[string][]string) []pb.Pair {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []pb.Pair
	for _, k := range keys {
		for _, v := range m[k] {
			pairs = append(pairs, pb.Pair{Key: []byte(k), Value: []byte(v)})
		}
	}
	return pairs
}
