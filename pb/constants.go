package pb

// Framing sizes.
const (
	// LengthSize is the size of the big-endian length prefix.
	LengthSize = 4

	// HeaderSize is the length prefix plus the message code byte.
	HeaderSize = LengthSize + 1
)

// Message codes. Requests and responses are paired: a request with code N is
// answered by code N+1, or by CodeErrorResp.
const (
	// CodeErrorResp is reserved for error responses. Its payload is an
	// RpbErrorResp message and may answer any request.
	CodeErrorResp byte = 0

	CodePingReq  byte = 1
	CodePingResp byte = 2

	CodeGetServerInfoReq  byte = 7
	CodeGetServerInfoResp byte = 8

	CodeGetReq  byte = 9
	CodeGetResp byte = 10

	CodePutReq  byte = 11
	CodePutResp byte = 12

	CodeDelReq  byte = 13
	CodeDelResp byte = 14

	// ListBuckets streams RpbListBucketsResp frames until one carries done=true
	// when the request sets stream=true.
	CodeListBucketsReq  byte = 15
	CodeListBucketsResp byte = 16

	// ListKeys always streams RpbListKeysResp frames until done=true.
	CodeListKeysReq  byte = 17
	CodeListKeysResp byte = 18
)

// CodeName returns a readable name for a message code, for logs and errors.
func CodeName(code byte) string {
	switch code {
	case CodeErrorResp:
		return "RpbErrorResp"
	case CodePingReq:
		return "RpbPingReq"
	case CodePingResp:
		return "RpbPingResp"
	case CodeGetServerInfoReq:
		return "RpbGetServerInfoReq"
	case CodeGetServerInfoResp:
		return "RpbGetServerInfoResp"
	case CodeGetReq:
		return "RpbGetReq"
	case CodeGetResp:
		return "RpbGetResp"
	case CodePutReq:
		return "RpbPutReq"
	case CodePutResp:
		return "RpbPutResp"
	case CodeDelReq:
		return "RpbDelReq"
	case CodeDelResp:
		return "RpbDelResp"
	case CodeListBucketsReq:
		return "RpbListBucketsReq"
	case CodeListBucketsResp:
		return "RpbListBucketsResp"
	case CodeListKeysReq:
		return "RpbListKeysReq"
	case CodeListKeysResp:
		return "RpbListKeysResp"
	default:
		return "unknown"
	}
}
