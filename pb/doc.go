// Package pb provides the low-level wire protocol for the Riak protocol buffers
// interface: length-prefixed framing and the protobuf messages exchanged
// inside each frame.
//
// This package has no networking and no knowledge of connection state. It is
// the foundation used by the riak package's Connection and commands.
//
// # Framing
//
// Every message on the wire is a frame:
//
//	[uint32 big-endian length][uint8 message code][length-1 bytes of payload]
//
// The length counts the code byte plus the payload, never itself.
//
// Encode builds a frame:
//
//	frame := pb.Encode(pb.CodeGetReq, payload)
//	_, err := conn.Write(frame)
//
// A Decoder reassembles frames from an arbitrarily chunked byte stream. A
// single Feed may yield zero, one or many frames, and a frame may span many
// Feed calls:
//
//	var dec pb.Decoder
//	for frame, err := range dec.Feed(chunk) {
//	    if err != nil {
//	        // framing can no longer be trusted, close the connection
//	    }
//	    route(frame.Code, frame.Payload)
//	}
//
// # Messages
//
// Request messages are encoded with their Marshal method and responses are
// decoded with the matching Unmarshal function. Encoding uses protowire
// directly, so no generated code is needed:
//
//	req := &pb.GetReq{Bucket: []byte("users"), Key: []byte("u1")}
//	frame := pb.Encode(pb.CodeGetReq, req.Marshal())
//
// # Errors
//
// Code 0 (CodeErrorResp) is reserved for error responses. Its payload decodes
// to a *ResponseError, a business-level error after which the connection is
// still usable. ProtocolError and DecodeError indicate that the byte stream
// can no longer be trusted; use ShouldCloseConnection to classify any error.
package pb
