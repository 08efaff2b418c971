package pb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Symbolic quorum values accepted wherever an R/W/PR/PW/DW/RW value is.
const (
	QuorumOne     uint32 = 4294967294
	QuorumQuorum  uint32 = 4294967293
	QuorumAll     uint32 = 4294967292
	QuorumDefault uint32 = 4294967291
)

// Marshal encodes the error as an RpbErrorResp payload.
func (e *ResponseError) Marshal() []byte {
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(e.Message))
	return appendUint32(b, 2, e.Code)
}

// UnmarshalErrorResp decodes an RpbErrorResp payload.
func UnmarshalErrorResp(b []byte) (*ResponseError, error) {
	var msg []byte
	e := &ResponseError{}
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &msg)
		case 2:
			return consumeUint32(typ, b, &e.Code)
		}
		return 0, nil
	})
	if err != nil {
		return nil, &DecodeError{Code: CodeErrorResp, Err: err}
	}
	e.Message = string(msg)
	return e, nil
}

// Pair is an RpbPair, used for user metadata and secondary indexes.
type Pair struct {
	Key   []byte
	Value []byte
}

func (p *Pair) marshal() []byte {
	b := appendBytes(nil, 1, p.Key)
	return appendBytes(b, 2, p.Value)
}

func (p *Pair) unmarshal(b []byte) error {
	*p = Pair{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &p.Key)
		case 2:
			return consumeBytes(typ, b, &p.Value)
		}
		return 0, nil
	})
}

// Content is an RpbContent: one value (or sibling) with its metadata.
// Links are not supported and are skipped when decoding.
type Content struct {
	Value           []byte
	ContentType     []byte
	Charset         []byte
	ContentEncoding []byte
	VTag            []byte
	LastMod         uint32
	LastModUsecs    uint32
	UserMeta        []Pair
	Indexes         []Pair
	Deleted         bool
}

func (c *Content) marshal() []byte {
	// value is a required field, always written
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, c.Value)
	b = appendBytes(b, 2, c.ContentType)
	b = appendBytes(b, 3, c.Charset)
	b = appendBytes(b, 4, c.ContentEncoding)
	b = appendBytes(b, 5, c.VTag)
	b = appendUint32(b, 7, c.LastMod)
	b = appendUint32(b, 8, c.LastModUsecs)
	for i := range c.UserMeta {
		b = appendBytes(b, 9, c.UserMeta[i].marshal())
	}
	for i := range c.Indexes {
		b = appendBytes(b, 10, c.Indexes[i].marshal())
	}
	return appendBool(b, 11, c.Deleted)
}

func (c *Content) unmarshal(b []byte) error {
	*c = Content{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &c.Value)
		case 2:
			return consumeBytes(typ, b, &c.ContentType)
		case 3:
			return consumeBytes(typ, b, &c.Charset)
		case 4:
			return consumeBytes(typ, b, &c.ContentEncoding)
		case 5:
			return consumeBytes(typ, b, &c.VTag)
		case 7:
			return consumeUint32(typ, b, &c.LastMod)
		case 8:
			return consumeUint32(typ, b, &c.LastModUsecs)
		case 9, 10:
			var raw []byte
			n, err := consumeBytes(typ, b, &raw)
			if err != nil {
				return 0, err
			}
			var p Pair
			if err := p.unmarshal(raw); err != nil {
				return 0, err
			}
			if num == 9 {
				c.UserMeta = append(c.UserMeta, p)
			} else {
				c.Indexes = append(c.Indexes, p)
			}
			return n, nil
		case 11:
			return consumeBool(typ, b, &c.Deleted)
		}
		return 0, nil
	})
}

func consumeContent(typ protowire.Type, b []byte, dst *[]Content) (int, error) {
	var raw []byte
	n, err := consumeBytes(typ, b, &raw)
	if err != nil {
		return 0, err
	}
	var c Content
	if err := c.unmarshal(raw); err != nil {
		return 0, err
	}
	*dst = append(*dst, c)
	return n, nil
}

// GetServerInfoResp is an RpbGetServerInfoResp.
type GetServerInfoResp struct {
	Node          []byte
	ServerVersion []byte
}

func (m *GetServerInfoResp) Marshal() []byte {
	b := appendBytes(nil, 1, m.Node)
	return appendBytes(b, 2, m.ServerVersion)
}

func (m *GetServerInfoResp) Unmarshal(b []byte) error {
	*m = GetServerInfoResp{}
	return decodeErr(CodeGetServerInfoResp, consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.Node)
		case 2:
			return consumeBytes(typ, b, &m.ServerVersion)
		}
		return 0, nil
	}))
}

// GetReq is an RpbGetReq.
type GetReq struct {
	Bucket        []byte
	Key           []byte
	R             uint32
	PR            uint32
	BasicQuorum   *bool
	NotFoundOK    *bool
	IfModified    []byte
	Head          bool
	DeletedVClock bool
	Timeout       uint32
	Type          []byte
}

func (m *GetReq) Marshal() []byte {
	b := appendBytes(nil, 1, m.Bucket)
	b = appendBytes(b, 2, m.Key)
	b = appendUint32(b, 3, m.R)
	b = appendUint32(b, 4, m.PR)
	b = appendOptBool(b, 5, m.BasicQuorum)
	b = appendOptBool(b, 6, m.NotFoundOK)
	b = appendBytes(b, 7, m.IfModified)
	b = appendBool(b, 8, m.Head)
	b = appendBool(b, 9, m.DeletedVClock)
	b = appendUint32(b, 10, m.Timeout)
	return appendBytes(b, 13, m.Type)
}

func (m *GetReq) Unmarshal(b []byte) error {
	*m = GetReq{}
	return decodeErr(CodeGetReq, consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.Bucket)
		case 2:
			return consumeBytes(typ, b, &m.Key)
		case 3:
			return consumeUint32(typ, b, &m.R)
		case 4:
			return consumeUint32(typ, b, &m.PR)
		case 5:
			m.BasicQuorum = new(bool)
			return consumeBool(typ, b, m.BasicQuorum)
		case 6:
			m.NotFoundOK = new(bool)
			return consumeBool(typ, b, m.NotFoundOK)
		case 7:
			return consumeBytes(typ, b, &m.IfModified)
		case 8:
			return consumeBool(typ, b, &m.Head)
		case 9:
			return consumeBool(typ, b, &m.DeletedVClock)
		case 10:
			return consumeUint32(typ, b, &m.Timeout)
		case 13:
			return consumeBytes(typ, b, &m.Type)
		}
		return 0, nil
	}))
}

// GetResp is an RpbGetResp. An empty Content with a nil VClock means not found.
type GetResp struct {
	Content   []Content
	VClock    []byte
	Unchanged bool
}

func (m *GetResp) Marshal() []byte {
	var b []byte
	for i := range m.Content {
		b = appendBytes(b, 1, m.Content[i].marshal())
	}
	b = appendBytes(b, 2, m.VClock)
	return appendBool(b, 3, m.Unchanged)
}

func (m *GetResp) Unmarshal(b []byte) error {
	*m = GetResp{}
	return decodeErr(CodeGetResp, consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeContent(typ, b, &m.Content)
		case 2:
			return consumeBytes(typ, b, &m.VClock)
		case 3:
			return consumeBool(typ, b, &m.Unchanged)
		}
		return 0, nil
	}))
}

// PutReq is an RpbPutReq.
type PutReq struct {
	Bucket      []byte
	Key         []byte
	VClock      []byte
	Content     Content
	W           uint32
	DW          uint32
	ReturnBody  bool
	PW          uint32
	IfNoneMatch bool
	ReturnHead  bool
	Timeout     uint32
	Type        []byte
}

func (m *PutReq) Marshal() []byte {
	b := appendBytes(nil, 1, m.Bucket)
	b = appendBytes(b, 2, m.Key)
	b = appendBytes(b, 3, m.VClock)
	b = appendBytes(b, 4, m.Content.marshal())
	b = appendUint32(b, 5, m.W)
	b = appendUint32(b, 6, m.DW)
	b = appendBool(b, 7, m.ReturnBody)
	b = appendUint32(b, 8, m.PW)
	b = appendBool(b, 10, m.IfNoneMatch)
	b = appendBool(b, 11, m.ReturnHead)
	b = appendUint32(b, 12, m.Timeout)
	return appendBytes(b, 16, m.Type)
}

func (m *PutReq) Unmarshal(b []byte) error {
	*m = PutReq{}
	return decodeErr(CodePutReq, consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.Bucket)
		case 2:
			return consumeBytes(typ, b, &m.Key)
		case 3:
			return consumeBytes(typ, b, &m.VClock)
		case 4:
			var raw []byte
			n, err := consumeBytes(typ, b, &raw)
			if err != nil {
				return 0, err
			}
			return n, m.Content.unmarshal(raw)
		case 5:
			return consumeUint32(typ, b, &m.W)
		case 6:
			return consumeUint32(typ, b, &m.DW)
		case 7:
			return consumeBool(typ, b, &m.ReturnBody)
		case 8:
			return consumeUint32(typ, b, &m.PW)
		case 10:
			return consumeBool(typ, b, &m.IfNoneMatch)
		case 11:
			return consumeBool(typ, b, &m.ReturnHead)
		case 12:
			return consumeUint32(typ, b, &m.Timeout)
		case 16:
			return consumeBytes(typ, b, &m.Type)
		}
		return 0, nil
	}))
}

// PutResp is an RpbPutResp. Key is set when the server generated it.
type PutResp struct {
	Content []Content
	VClock  []byte
	Key     []byte
}

func (m *PutResp) Marshal() []byte {
	var b []byte
	for i := range m.Content {
		b = appendBytes(b, 1, m.Content[i].marshal())
	}
	b = appendBytes(b, 2, m.VClock)
	return appendBytes(b, 3, m.Key)
}

func (m *PutResp) Unmarshal(b []byte) error {
	*m = PutResp{}
	return decodeErr(CodePutResp, consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeContent(typ, b, &m.Content)
		case 2:
			return consumeBytes(typ, b, &m.VClock)
		case 3:
			return consumeBytes(typ, b, &m.Key)
		}
		return 0, nil
	}))
}

// DelReq is an RpbDelReq.
type DelReq struct {
	Bucket  []byte
	Key     []byte
	RW      uint32
	VClock  []byte
	R       uint32
	W       uint32
	PR      uint32
	PW      uint32
	DW      uint32
	Timeout uint32
	Type    []byte
}

func (m *DelReq) Marshal() []byte {
	b := appendBytes(nil, 1, m.Bucket)
	b = appendBytes(b, 2, m.Key)
	b = appendUint32(b, 3, m.RW)
	b = appendBytes(b, 4, m.VClock)
	b = appendUint32(b, 5, m.R)
	b = appendUint32(b, 6, m.W)
	b = appendUint32(b, 7, m.PR)
	b = appendUint32(b, 8, m.PW)
	b = appendUint32(b, 9, m.DW)
	b = appendUint32(b, 10, m.Timeout)
	return appendBytes(b, 13, m.Type)
}

func (m *DelReq) Unmarshal(b []byte) error {
	*m = DelReq{}
	return decodeErr(CodeDelReq, consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.Bucket)
		case 2:
			return consumeBytes(typ, b, &m.Key)
		case 3:
			return consumeUint32(typ, b, &m.RW)
		case 4:
			return consumeBytes(typ, b, &m.VClock)
		case 5:
			return consumeUint32(typ, b, &m.R)
		case 6:
			return consumeUint32(typ, b, &m.W)
		case 7:
			return consumeUint32(typ, b, &m.PR)
		case 8:
			return consumeUint32(typ, b, &m.PW)
		case 9:
			return consumeUint32(typ, b, &m.DW)
		case 10:
			return consumeUint32(typ, b, &m.Timeout)
		case 13:
			return consumeBytes(typ, b, &m.Type)
		}
		return 0, nil
	}))
}

// ListBucketsReq is an RpbListBucketsReq.
type ListBucketsReq struct {
	Timeout uint32
	Stream  bool
	Type    []byte
}

func (m *ListBucketsReq) Marshal() []byte {
	b := appendUint32(nil, 1, m.Timeout)
	b = appendBool(b, 2, m.Stream)
	return appendBytes(b, 3, m.Type)
}

func (m *ListBucketsReq) Unmarshal(b []byte) error {
	*m = ListBucketsReq{}
	return decodeErr(CodeListBucketsReq, consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeUint32(typ, b, &m.Timeout)
		case 2:
			return consumeBool(typ, b, &m.Stream)
		case 3:
			return consumeBytes(typ, b, &m.Type)
		}
		return 0, nil
	}))
}

// ListBucketsResp is an RpbListBucketsResp, possibly one chunk of a stream.
type ListBucketsResp struct {
	Buckets [][]byte
	Done    bool
}

func (m *ListBucketsResp) Marshal() []byte {
	var b []byte
	for _, bucket := range m.Buckets {
		b = appendBytes(b, 1, bucket)
	}
	return appendBool(b, 2, m.Done)
}

func (m *ListBucketsResp) Unmarshal(b []byte) error {
	*m = ListBucketsResp{}
	return decodeErr(CodeListBucketsResp, consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var bucket []byte
			n, err := consumeBytes(typ, b, &bucket)
			m.Buckets = append(m.Buckets, bucket)
			return n, err
		case 2:
			return consumeBool(typ, b, &m.Done)
		}
		return 0, nil
	}))
}

// ListKeysReq is an RpbListKeysReq.
type ListKeysReq struct {
	Bucket  []byte
	Timeout uint32
	Type    []byte
}

func (m *ListKeysReq) Marshal() []byte {
	b := appendBytes(nil, 1, m.Bucket)
	b = appendUint32(b, 2, m.Timeout)
	return appendBytes(b, 3, m.Type)
}

func (m *ListKeysReq) Unmarshal(b []byte) error {
	*m = ListKeysReq{}
	return decodeErr(CodeListKeysReq, consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(typ, b, &m.Bucket)
		case 2:
			return consumeUint32(typ, b, &m.Timeout)
		case 3:
			return consumeBytes(typ, b, &m.Type)
		}
		return 0, nil
	}))
}

// ListKeysResp is one chunk of an RpbListKeysResp stream.
type ListKeysResp struct {
	Keys [][]byte
	Done bool
}

func (m *ListKeysResp) Marshal() []byte {
	var b []byte
	for _, key := range m.Keys {
		b = appendBytes(b, 1, key)
	}
	return appendBool(b, 2, m.Done)
}

func (m *ListKeysResp) Unmarshal(b []byte) error {
	*m = ListKeysResp{}
	return decodeErr(CodeListKeysResp, consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var key []byte
			n, err := consumeBytes(typ, b, &key)
			m.Keys = append(m.Keys, key)
			return n, err
		case 2:
			return consumeBool(typ, b, &m.Done)
		}
		return 0, nil
	}))
}

func decodeErr(code byte, err error) error {
	if err == nil {
		return nil
	}
	return &DecodeError{Code: code, Err: err}
}
