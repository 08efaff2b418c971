package pb

import (
	"testing"
)

// FuzzDecoder feeds arbitrary bytes split at an arbitrary point.
// Run with: go test -fuzz='^FuzzDecoder$' -fuzztime=60s ./pb
func FuzzDecoder(f *testing.F) {
	f.Add(Encode(CodePingResp, nil), 0)
	f.Add(Encode(CodeGetResp, []byte("hello")), 3)
	f.Add(append(Encode(CodeListKeysResp, []byte{0x0a, 0x01, 'k'}), Encode(CodeListKeysResp, []byte{0x10, 0x01})...), 7)
	f.Add([]byte{0, 0, 0, 0}, 2)
	f.Add([]byte{0xff, 0xff, 0xff, 0xff, 1}, 1)
	f.Add([]byte{}, 0)

	f.Fuzz(func(t *testing.T, data []byte, split int) {
		if split < 0 || split > len(data) {
			split = len(data) / 2
		}

		d := Decoder{MaxFrameSize: 1 << 20}
		consumed := 0
		failed := false
		for _, chunk := range [][]byte{data[:split], data[split:]} {
			for frame, err := range d.Feed(chunk) {
				if err != nil {
					failed = true
					break
				}
				consumed += HeaderSize + len(frame.Payload)
			}
		}

		if !failed && consumed+d.Buffered() != len(data) {
			t.Errorf("consumed %d + buffered %d != fed %d", consumed, d.Buffered(), len(data))
		}
	})
}

// FuzzUnmarshalGetResp checks the message decoder never panics.
func FuzzUnmarshalGetResp(f *testing.F) {
	resp := &GetResp{
		Content: []Content{{Value: []byte("v"), ContentType: []byte("text/plain")}},
		VClock:  []byte("vc"),
	}
	f.Add(resp.Marshal())
	f.Add([]byte{0x0a, 0xff})
	f.Add([]byte{0x08})

	f.Fuzz(func(t *testing.T, data []byte) {
		var m GetResp
		_ = m.Unmarshal(data)
	})
}
