package pb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestErrorResp(t *testing.T) {
	payload := (&ResponseError{Code: 42, Message: "no such bucket type"}).Marshal()

	e, err := UnmarshalErrorResp(payload)

	require.NoError(t, err)
	assert.Equal(t, uint32(42), e.Code)
	assert.Equal(t, "no such bucket type", e.Message)
	assert.Equal(t, "riak error 42: no such bucket type", e.Error())
	assert.False(t, ShouldCloseConnection(e))
}

func TestErrorResp_NoCode(t *testing.T) {
	e, err := UnmarshalErrorResp((&ResponseError{Message: "overload"}).Marshal())

	require.NoError(t, err)
	assert.Equal(t, "riak error: overload", e.Error())
}

func TestErrorResp_Malformed(t *testing.T) {
	_, err := UnmarshalErrorResp([]byte{0x0a, 0x05, 'a'})

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, CodeErrorResp, derr.Code)
	assert.True(t, ShouldCloseConnection(err))
}

func TestGetReq_Fields(t *testing.T) {
	notFoundOK := false
	req := &GetReq{
		Type:       []byte("maps"),
		Bucket:     []byte("users"),
		Key:        []byte("u1"),
		R:          QuorumQuorum,
		NotFoundOK: &notFoundOK,
		Timeout:    1500,
	}

	var got GetReq
	require.NoError(t, got.Unmarshal(req.Marshal()))

	assert.Equal(t, []byte("maps"), got.Type)
	assert.Equal(t, []byte("users"), got.Bucket)
	assert.Equal(t, []byte("u1"), got.Key)
	assert.Equal(t, QuorumQuorum, got.R)
	assert.Zero(t, got.PR)
	require.NotNil(t, got.NotFoundOK)
	assert.False(t, *got.NotFoundOK)
	assert.Nil(t, got.BasicQuorum)
	assert.Equal(t, uint32(1500), got.Timeout)
}

func TestGetResp_Siblings(t *testing.T) {
	resp := &GetResp{
		Content: []Content{
			{
				Value:       []byte("one"),
				ContentType: []byte("text/plain"),
				VTag:        []byte("tag1"),
				LastMod:     1700000000,
				UserMeta:    []Pair{{Key: []byte("owner"), Value: []byte("ops")}},
				Indexes:     []Pair{{Key: []byte("email_bin"), Value: []byte("a@b")}},
			},
			{Value: []byte("two"), Deleted: true},
		},
		VClock: []byte{0x6b, 0xce},
	}

	var got GetResp
	require.NoError(t, got.Unmarshal(resp.Marshal()))

	require.Len(t, got.Content, 2)
	assert.Equal(t, []byte("one"), got.Content[0].Value)
	assert.Equal(t, []byte("text/plain"), got.Content[0].ContentType)
	assert.Equal(t, uint32(1700000000), got.Content[0].LastMod)
	assert.Equal(t, []Pair{{Key: []byte("owner"), Value: []byte("ops")}}, got.Content[0].UserMeta)
	assert.Equal(t, []Pair{{Key: []byte("email_bin"), Value: []byte("a@b")}}, got.Content[0].Indexes)
	assert.True(t, got.Content[1].Deleted)
	assert.Equal(t, []byte{0x6b, 0xce}, got.VClock)
}

func TestGetResp_NotFound(t *testing.T) {
	var got GetResp
	require.NoError(t, got.Unmarshal(nil))

	assert.Empty(t, got.Content)
	assert.Nil(t, got.VClock)
}

func TestGetResp_SkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 99, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	b = protowire.AppendTag(b, 98, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("ignored"))
	b = append(b, (&GetResp{VClock: []byte("vc")}).Marshal()...)

	var got GetResp
	require.NoError(t, got.Unmarshal(b))
	assert.Equal(t, []byte("vc"), got.VClock)
}

func TestGetResp_WrongWireType(t *testing.T) {
	b := protowire.AppendTag(nil, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, 1)

	var got GetResp
	err := got.Unmarshal(b)

	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, CodeGetResp, derr.Code)
}

func TestPutReq_Fields(t *testing.T) {
	req := &PutReq{
		Bucket:     []byte("b"),
		Key:        []byte("k"),
		VClock:     []byte("vc"),
		Content:    Content{Value: []byte("v"), ContentType: []byte("application/json")},
		W:          3,
		ReturnBody: true,
		Type:       []byte("default"),
	}

	var got PutReq
	require.NoError(t, got.Unmarshal(req.Marshal()))
	assert.Equal(t, *req, got)
}

func TestPutResp_GeneratedKey(t *testing.T) {
	var got PutResp
	require.NoError(t, got.Unmarshal((&PutResp{Key: []byte("generated"), VClock: []byte("vc")}).Marshal()))

	assert.Equal(t, []byte("generated"), got.Key)
	assert.Equal(t, []byte("vc"), got.VClock)
}

func TestDelReq_Fields(t *testing.T) {
	req := &DelReq{Bucket: []byte("b"), Key: []byte("k"), RW: QuorumAll, VClock: []byte("vc"), Timeout: 10}

	var got DelReq
	require.NoError(t, got.Unmarshal(req.Marshal()))
	assert.Equal(t, *req, got)
}

func TestListBuckets(t *testing.T) {
	req := &ListBucketsReq{Stream: true, Type: []byte("t")}
	var gotReq ListBucketsReq
	require.NoError(t, gotReq.Unmarshal(req.Marshal()))
	assert.Equal(t, *req, gotReq)

	resp := &ListBucketsResp{Buckets: [][]byte{[]byte("a"), []byte("b")}}
	var gotResp ListBucketsResp
	require.NoError(t, gotResp.Unmarshal(resp.Marshal()))
	assert.Equal(t, resp.Buckets, gotResp.Buckets)
	assert.False(t, gotResp.Done)
}

func TestListKeys(t *testing.T) {
	req := &ListKeysReq{Bucket: []byte("b"), Timeout: 5}
	var gotReq ListKeysReq
	require.NoError(t, gotReq.Unmarshal(req.Marshal()))
	assert.Equal(t, *req, gotReq)

	var done ListKeysResp
	require.NoError(t, done.Unmarshal((&ListKeysResp{Done: true}).Marshal()))
	assert.True(t, done.Done)
	assert.Empty(t, done.Keys)
}

func TestGetServerInfoResp(t *testing.T) {
	var got GetServerInfoResp
	require.NoError(t, got.Unmarshal((&GetServerInfoResp{Node: []byte("riak@127.0.0.1"), ServerVersion: []byte("3.2.0")}).Marshal()))

	assert.Equal(t, "riak@127.0.0.1", string(got.Node))
	assert.Equal(t, "3.2.0", string(got.ServerVersion))
}

func TestCodeName(t *testing.T) {
	assert.Equal(t, "RpbErrorResp", CodeName(CodeErrorResp))
	assert.Equal(t, "RpbListKeysResp", CodeName(CodeListKeysResp))
	assert.Equal(t, "unknown", CodeName(200))
}
