package testutils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/pior/riak/pb"
)

// Handler answers one request frame with raw bytes written back as-is.
// Returning nil sends nothing, leaving the client waiting.
type Handler func(req pb.Frame) []byte

// FakeNode is an in-process server speaking the framed protocol on a
// loopback listener.
type FakeNode struct {
	listener net.Listener
	handler  Handler

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	requests []pb.Frame
	accepted int
	closed   bool

	wg sync.WaitGroup
}

// NewFakeNode starts a fake node. It is closed by t.Cleanup.
func NewFakeNode(t testing.TB, handler Handler) *FakeNode {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("fake node: listen: %v", err)
	}

	n := &FakeNode{
		listener: ln,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}

	n.wg.Add(1)
	go n.acceptLoop()

	t.Cleanup(n.Close)
	return n
}

// Addr returns the "host:port" address of the node.
func (n *FakeNode) Addr() string {
	return n.listener.Addr().String()
}

func (n *FakeNode) Host() string {
	return n.listener.Addr().(*net.TCPAddr).IP.String()
}

func (n *FakeNode) Port() int {
	return n.listener.Addr().(*net.TCPAddr).Port
}

// Requests returns a copy of every request frame received so far.
func (n *FakeNode) Requests() []pb.Frame {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]pb.Frame(nil), n.requests...)
}

// Accepted returns the number of connections accepted so far.
func (n *FakeNode) Accepted() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.accepted
}

// DropConnections closes every open connection from the server side.
func (n *FakeNode) DropConnections() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for conn := range n.conns {
		conn.Close()
	}
}

// Close stops the listener and closes every connection.
func (n *FakeNode) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	n.listener.Close()
	n.DropConnections()
	n.wg.Wait()
}

func (n *FakeNode) acceptLoop() {
	defer n.wg.Done()

	for {
		conn, err := n.listener.Accept()
		if err != nil {
			return
		}

		n.mu.Lock()
		if n.closed {
			n.mu.Unlock()
			conn.Close()
			return
		}
		n.conns[conn] = struct{}{}
		n.accepted++
		n.mu.Unlock()

		n.wg.Add(1)
		go n.serve(conn)
	}
}

func (n *FakeNode) serve(conn net.Conn) {
	defer n.wg.Done()
	defer func() {
		n.mu.Lock()
		delete(n.conns, conn)
		n.mu.Unlock()
		conn.Close()
	}()

	var decoder pb.Decoder
	buf := make([]byte, 4096)
	for {
		nr, err := conn.Read(buf)
		for frame, ferr := range decoder.Feed(buf[:nr]) {
			if ferr != nil {
				return
			}

			n.mu.Lock()
			n.requests = append(n.requests, frame)
			n.mu.Unlock()

			if out := n.handler(frame); out != nil {
				if _, werr := conn.Write(out); werr != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// Reply encodes frames into the bytes a Handler returns.
func Reply(frames ...pb.Frame) []byte {
	var out []byte
	for _, f := range frames {
		out = pb.AppendFrame(out, f.Code, f.Payload)
	}
	return out
}

// ErrorReply encodes an error response frame.
func ErrorReply(code uint32, message string) []byte {
	e := &pb.ResponseError{Code: code, Message: message}
	return pb.Encode(pb.CodeErrorResp, e.Marshal())
}

// ClosedAddr returns a loopback address nothing listens on.
func ClosedAddr(t testing.TB) (string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("closed addr: listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()
	return addr.IP.String(), addr.Port
}

// HangingDialer never connects: DialContext blocks until its context ends.
type HangingDialer struct{}

func (HangingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	<-ctx.Done()
	return nil, context.Cause(ctx)
}

// JoinAddr is net.JoinHostPort for an int port.
func JoinAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
