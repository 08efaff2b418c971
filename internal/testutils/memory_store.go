package testutils

import (
	"slices"
	"strconv"
	"sync"

	"github.com/pior/riak/pb"
)

// MemoryStore is a Handler backed by a map. It answers ping, server info,
// get, put, delete, and the bucket and key listings. Listings are streamed
// with ChunkSize entries per frame.
type MemoryStore struct {
	ChunkSize int

	mu      sync.Mutex
	objects map[string]map[string]pb.Content // bucket -> key -> content
	vclock  int
	nextKey int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ChunkSize: 2,
		objects:   make(map[string]map[string]pb.Content),
	}
}

// Handle implements Handler.
func (s *MemoryStore) Handle(req pb.Frame) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Code {
	case pb.CodePingReq:
		return pb.Encode(pb.CodePingResp, nil)

	case pb.CodeGetServerInfoReq:
		resp := pb.GetServerInfoResp{Node: []byte("fake@127.0.0.1"), ServerVersion: []byte("3.2.0")}
		return pb.Encode(pb.CodeGetServerInfoResp, resp.Marshal())

	case pb.CodeGetReq:
		var m pb.GetReq
		if err := m.Unmarshal(req.Payload); err != nil {
			return ErrorReply(0, err.Error())
		}
		var resp pb.GetResp
		if content, ok := s.objects[string(m.Bucket)][string(m.Key)]; ok {
			resp.Content = []pb.Content{content}
			resp.VClock = []byte("vc" + strconv.Itoa(s.vclock))
		}
		return pb.Encode(pb.CodeGetResp, resp.Marshal())

	case pb.CodePutReq:
		var m pb.PutReq
		if err := m.Unmarshal(req.Payload); err != nil {
			return ErrorReply(0, err.Error())
		}
		var resp pb.PutResp
		key := string(m.Key)
		if key == "" {
			s.nextKey++
			key = "generated-" + strconv.Itoa(s.nextKey)
			resp.Key = []byte(key)
		}
		bucket := s.objects[string(m.Bucket)]
		if bucket == nil {
			bucket = make(map[string]pb.Content)
			s.objects[string(m.Bucket)] = bucket
		}
		if _, exists := bucket[key]; exists && m.IfNoneMatch {
			return ErrorReply(0, "match_found")
		}
		bucket[key] = m.Content
		s.vclock++
		if m.ReturnBody {
			resp.Content = []pb.Content{m.Content}
			resp.VClock = []byte("vc" + strconv.Itoa(s.vclock))
		}
		return pb.Encode(pb.CodePutResp, resp.Marshal())

	case pb.CodeDelReq:
		var m pb.DelReq
		if err := m.Unmarshal(req.Payload); err != nil {
			return ErrorReply(0, err.Error())
		}
		delete(s.objects[string(m.Bucket)], string(m.Key))
		return pb.Encode(pb.CodeDelResp, nil)

	case pb.CodeListBucketsReq:
		var m pb.ListBucketsReq
		if err := m.Unmarshal(req.Payload); err != nil {
			return ErrorReply(0, err.Error())
		}
		var names [][]byte
		for _, b := range s.sortedBuckets() {
			names = append(names, []byte(b))
		}
		if !m.Stream {
			resp := pb.ListBucketsResp{Buckets: names}
			return pb.Encode(pb.CodeListBucketsResp, resp.Marshal())
		}
		var out []byte
		for chunk := range slices.Chunk(names, s.ChunkSize) {
			resp := pb.ListBucketsResp{Buckets: chunk}
			out = pb.AppendFrame(out, pb.CodeListBucketsResp, resp.Marshal())
		}
		done := pb.ListBucketsResp{Done: true}
		return pb.AppendFrame(out, pb.CodeListBucketsResp, done.Marshal())

	case pb.CodeListKeysReq:
		var m pb.ListKeysReq
		if err := m.Unmarshal(req.Payload); err != nil {
			return ErrorReply(0, err.Error())
		}
		var keys [][]byte
		for k := range s.objects[string(m.Bucket)] {
			keys = append(keys, []byte(k))
		}
		slices.SortFunc(keys, func(a, b []byte) int { return slices.Compare(a, b) })

		var out []byte
		for chunk := range slices.Chunk(keys, s.ChunkSize) {
			resp := pb.ListKeysResp{Keys: chunk}
			out = pb.AppendFrame(out, pb.CodeListKeysResp, resp.Marshal())
		}
		done := pb.ListKeysResp{Done: true}
		return pb.AppendFrame(out, pb.CodeListKeysResp, done.Marshal())

	default:
		return ErrorReply(0, "unknown message code: "+strconv.Itoa(int(req.Code)))
	}
}

func (s *MemoryStore) sortedBuckets() []string {
	var names []string
	for name, keys := range s.objects {
		if len(keys) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
