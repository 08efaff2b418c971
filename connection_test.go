package riak

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pior/riak/internal/testutils"
	"github.com/pior/riak/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventTimeout = 2 * time.Second

type eventRecorder struct {
	events chan Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{events: make(chan Event, 10)}
}

func (r *eventRecorder) listener(ev Event) {
	r.events <- ev
}

func (r *eventRecorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for a connection event")
		return Event{}
	}
}

func (r *eventRecorder) requireNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r.events:
		t.Fatalf("unexpected event: %s (%v)", ev.Type, ev.Err)
	case <-time.After(50 * time.Millisecond):
	}
}

func configFor(node *testutils.FakeNode) ConnectionConfig {
	return ConnectionConfig{
		Address:        node.Host(),
		Port:           node.Port(),
		ConnectTimeout: time.Second,
	}
}

func connectTo(t *testing.T, cfg ConnectionConfig) (*Connection, *eventRecorder) {
	t.Helper()

	rec := newEventRecorder()
	conn, err := NewConnection(cfg, rec.listener)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.Connect())
	ev := rec.next(t)
	require.Equal(t, EventConnected, ev.Type, "connect failed: %v", ev.Err)
	return conn, rec
}

func waitCmd(t *testing.T, cmd Awaitable) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	return Wait(ctx, cmd)
}

func hangOn(code byte, next testutils.Handler) testutils.Handler {
	return func(req pb.Frame) []byte {
		if req.Code == code {
			return nil
		}
		return next(req)
	}
}

func TestConnectionConfig_Validate(t *testing.T) {
	require.NoError(t, ConnectionConfig{Address: "localhost", Port: 8087}.Validate())
	require.Error(t, ConnectionConfig{Port: 8087}.Validate())
	require.Error(t, ConnectionConfig{Address: "localhost"}.Validate())
	require.Error(t, ConnectionConfig{Address: "localhost", Port: 70000}.Validate())
	require.Error(t, ConnectionConfig{Address: "localhost", Port: 8087, ConnectTimeout: -1}.Validate())

	_, err := NewConnection(ConnectionConfig{}, nil)
	require.Error(t, err)
}

func TestConnection_Connect(t *testing.T) {
	node := testutils.NewFakeNode(t, testutils.NewMemoryStore().Handle)

	rec := newEventRecorder()
	conn, err := NewConnection(configFor(node), rec.listener)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, StateIdle, conn.State())
	assert.Equal(t, node.Addr(), conn.Addr())

	require.NoError(t, conn.Connect())

	ev := rec.next(t)
	require.Equal(t, EventConnected, ev.Type)
	require.NoError(t, ev.Err)
	assert.Equal(t, StateConnected, conn.State())
	assert.False(t, conn.LastUsed().IsZero())

	rec.requireNone(t)
}

func TestConnection_ConnectTwice(t *testing.T) {
	node := testutils.NewFakeNode(t, testutils.NewMemoryStore().Handle)
	conn, _ := connectTo(t, configFor(node))

	err := conn.Connect()
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateConnected, conn.State())
}

func TestConnection_ConnectRefused(t *testing.T) {
	host, port := testutils.ClosedAddr(t)

	rec := newEventRecorder()
	conn, err := NewConnection(ConnectionConfig{Address: host, Port: port}, rec.listener)
	require.NoError(t, err)

	require.NoError(t, conn.Connect())

	ev := rec.next(t)
	require.Equal(t, EventConnectFailed, ev.Type)

	var cerr *ConnectError
	require.ErrorAs(t, ev.Err, &cerr)
	assert.Equal(t, ConnectRefused, cerr.Reason)
	assert.False(t, cerr.Timeout())
	assert.Equal(t, StateFailed, conn.State())

	// terminal: close is a no-op and emits nothing
	require.NoError(t, conn.Close())
	assert.Equal(t, StateFailed, conn.State())
	rec.requireNone(t)
}

func TestConnection_ConnectTimeout(t *testing.T) {
	rec := newEventRecorder()
	conn, err := NewConnection(ConnectionConfig{
		Address:        "10.255.255.1",
		Port:           8087,
		ConnectTimeout: 100 * time.Millisecond,
		Dialer:         testutils.HangingDialer{},
	}, rec.listener)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, conn.Connect())
	assert.Equal(t, StateConnecting, conn.State())

	ev := rec.next(t)
	elapsed := time.Since(start)

	require.Equal(t, EventConnectFailed, ev.Type)
	var cerr *ConnectError
	require.ErrorAs(t, ev.Err, &cerr)
	assert.Equal(t, ConnectTimeout, cerr.Reason)
	assert.True(t, cerr.Timeout())

	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, StateFailed, conn.State())

	rec.requireNone(t)
}

func TestConnection_CloseWhileConnecting(t *testing.T) {
	rec := newEventRecorder()
	conn, err := NewConnection(ConnectionConfig{
		Address:        "10.255.255.1",
		Port:           8087,
		ConnectTimeout: time.Minute,
		Dialer:         testutils.HangingDialer{},
	}, rec.listener)
	require.NoError(t, err)

	require.NoError(t, conn.Connect())
	require.NoError(t, conn.Close())
	assert.Equal(t, StateClosed, conn.State())

	ev := rec.next(t)
	require.Equal(t, EventConnectFailed, ev.Type)
	var cerr *ConnectError
	require.ErrorAs(t, ev.Err, &cerr)
	assert.Equal(t, ConnectAborted, cerr.Reason)

	rec.requireNone(t)
}

func TestConnection_CloseIdle(t *testing.T) {
	rec := newEventRecorder()
	conn, err := NewConnection(ConnectionConfig{Address: "localhost", Port: 8087}, rec.listener)
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.Equal(t, StateClosed, conn.State())
	require.ErrorIs(t, conn.Connect(), ErrInvalidState)

	rec.requireNone(t)
}

func TestConnection_CloseIdempotent(t *testing.T) {
	node := testutils.NewFakeNode(t, testutils.NewMemoryStore().Handle)
	conn, rec := connectTo(t, configFor(node))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, StateClosed, conn.State())

	ev := rec.next(t)
	require.Equal(t, EventConnectionClosed, ev.Type)
	require.NoError(t, ev.Err)

	rec.requireNone(t)
}

func TestConnection_Ping(t *testing.T) {
	node := testutils.NewFakeNode(t, testutils.NewMemoryStore().Handle)
	conn, _ := connectTo(t, configFor(node))

	for range 3 {
		cmd := NewPing()
		require.NoError(t, conn.Send(cmd))
		require.NoError(t, waitCmd(t, cmd))
		assert.False(t, conn.InFlight())
	}

	requests := node.Requests()
	require.Len(t, requests, 3)
	assert.Equal(t, pb.CodePingReq, requests[0].Code)
	assert.Empty(t, requests[0].Payload)
}

func TestConnection_SendNotConnected(t *testing.T) {
	conn, err := NewConnection(ConnectionConfig{Address: "localhost", Port: 8087}, nil)
	require.NoError(t, err)

	cmd := NewPing()
	require.ErrorIs(t, conn.Send(cmd), ErrNotConnected)

	// the command is untouched
	select {
	case <-cmd.Done():
		t.Fatal("command should not be completed")
	default:
	}
}

func TestConnection_SendEncodeError(t *testing.T) {
	node := testutils.NewFakeNode(t, testutils.NewMemoryStore().Handle)
	conn, _ := connectTo(t, configFor(node))

	encodeErr := errors.New("boom")
	require.ErrorIs(t, conn.Send(&failingEncodeCommand{err: encodeErr}), encodeErr)
	assert.False(t, conn.InFlight())

	cmd := NewPing()
	require.NoError(t, conn.Send(cmd))
	require.NoError(t, waitCmd(t, cmd))
}

type failingEncodeCommand struct {
	err error
}

func (c *failingEncodeCommand) Encode() (byte, []byte, error)        { return 0, nil, c.err }
func (c *failingEncodeCommand) ExpectedCode() byte                   { return 0 }
func (c *failingEncodeCommand) OnFrame(payload []byte) (bool, error) { return true, nil }
func (c *failingEncodeCommand) OnError(err error)                    {}

func TestConnection_SingleInFlight(t *testing.T) {
	node := testutils.NewFakeNode(t, hangOn(pb.CodePingReq, testutils.NewMemoryStore().Handle))
	conn, rec := connectTo(t, configFor(node))

	first := NewPing()
	require.NoError(t, conn.Send(first))
	assert.True(t, conn.InFlight())

	second := NewPing()
	require.ErrorIs(t, conn.Send(second), ErrCommandInFlight)

	require.NoError(t, conn.Close())

	require.ErrorIs(t, waitCmd(t, first), ErrConnectionClosed)
	select {
	case <-second.Done():
		t.Fatal("rejected command should not be completed")
	default:
	}

	ev := rec.next(t)
	require.Equal(t, EventConnectionClosed, ev.Type)
	require.NoError(t, ev.Err)
}

func TestConnection_PeerClose(t *testing.T) {
	node := testutils.NewFakeNode(t, testutils.NewMemoryStore().Handle)
	conn, rec := connectTo(t, configFor(node))

	node.DropConnections()

	ev := rec.next(t)
	require.Equal(t, EventConnectionClosed, ev.Type)
	require.ErrorIs(t, ev.Err, ErrConnectionClosed)
	assert.Equal(t, StateFailed, conn.State())

	require.ErrorIs(t, conn.Send(NewPing()), ErrNotConnected)
	rec.requireNone(t)
}

func TestConnection_PeerCloseFailsInFlight(t *testing.T) {
	node := testutils.NewFakeNode(t, hangOn(pb.CodePingReq, testutils.NewMemoryStore().Handle))
	conn, rec := connectTo(t, configFor(node))

	cmd := NewPing()
	require.NoError(t, conn.Send(cmd))
	require.Eventually(t, func() bool { return len(node.Requests()) == 1 }, eventTimeout, 5*time.Millisecond)

	node.DropConnections()

	require.ErrorIs(t, waitCmd(t, cmd), ErrConnectionClosed)

	ev := rec.next(t)
	require.Equal(t, EventConnectionClosed, ev.Type)
	require.Error(t, ev.Err)
	assert.Equal(t, StateFailed, conn.State())
}

func TestConnection_ErrorResponseKeepsConnection(t *testing.T) {
	store := testutils.NewMemoryStore()
	node := testutils.NewFakeNode(t, func(req pb.Frame) []byte {
		if req.Code == pb.CodeGetReq {
			return testutils.ErrorReply(42, "overload")
		}
		return store.Handle(req)
	})
	conn, rec := connectTo(t, configFor(node))

	fetch, err := NewFetchValue(FetchOptions{Bucket: "b", Key: "k"})
	require.NoError(t, err)
	require.NoError(t, conn.Send(fetch))

	err = waitCmd(t, fetch)
	var respErr *pb.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, uint32(42), respErr.Code)
	assert.Equal(t, "overload", respErr.Message)
	assert.False(t, ShouldCloseConnection(err))

	assert.Equal(t, StateConnected, conn.State())
	assert.False(t, conn.InFlight())

	ping := NewPing()
	require.NoError(t, conn.Send(ping))
	require.NoError(t, waitCmd(t, ping))

	rec.requireNone(t)
}

func TestConnection_UnexpectedCode(t *testing.T) {
	node := testutils.NewFakeNode(t, func(req pb.Frame) []byte {
		return pb.Encode(pb.CodePutResp, nil)
	})
	conn, rec := connectTo(t, configFor(node))

	cmd := NewPing()
	require.NoError(t, conn.Send(cmd))

	err := waitCmd(t, cmd)
	var perr *pb.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.True(t, ShouldCloseConnection(err))

	ev := rec.next(t)
	require.Equal(t, EventConnectionClosed, ev.Type)
	require.ErrorAs(t, ev.Err, &perr)
	assert.Equal(t, StateFailed, conn.State())
}

func TestConnection_UnsolicitedFrame(t *testing.T) {
	node := testutils.NewFakeNode(t, func(req pb.Frame) []byte {
		return testutils.Reply(
			pb.Frame{Code: pb.CodePingResp},
			pb.Frame{Code: pb.CodePingResp},
		)
	})
	conn, rec := connectTo(t, configFor(node))

	cmd := NewPing()
	require.NoError(t, conn.Send(cmd))
	require.NoError(t, waitCmd(t, cmd))

	ev := rec.next(t)
	require.Equal(t, EventConnectionClosed, ev.Type)
	var perr *pb.ProtocolError
	require.ErrorAs(t, ev.Err, &perr)
	assert.Equal(t, StateFailed, conn.State())
}

func TestConnection_DecodeError(t *testing.T) {
	node := testutils.NewFakeNode(t, func(req pb.Frame) []byte {
		// field 1, bytes, declared length beyond the payload
		return pb.Encode(pb.CodeGetResp, []byte{0x0a, 0x05, 0x01})
	})
	conn, rec := connectTo(t, configFor(node))

	fetch, err := NewFetchValue(FetchOptions{Bucket: "b", Key: "k"})
	require.NoError(t, err)
	require.NoError(t, conn.Send(fetch))

	err = waitCmd(t, fetch)
	var derr *pb.DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, pb.CodeGetResp, derr.Code)

	ev := rec.next(t)
	require.Equal(t, EventConnectionClosed, ev.Type)
	assert.Equal(t, StateFailed, conn.State())
}

func TestConnection_MaxFrameSize(t *testing.T) {
	node := testutils.NewFakeNode(t, func(req pb.Frame) []byte {
		resp := pb.GetServerInfoResp{Node: make([]byte, 100)}
		return pb.Encode(pb.CodeGetServerInfoResp, resp.Marshal())
	})
	cfg := configFor(node)
	cfg.MaxFrameSize = 16
	conn, rec := connectTo(t, cfg)

	cmd := NewGetServerInfo()
	require.NoError(t, conn.Send(cmd))

	var perr *pb.ProtocolError
	require.ErrorAs(t, waitCmd(t, cmd), &perr)

	ev := rec.next(t)
	require.Equal(t, EventConnectionClosed, ev.Type)
	assert.Equal(t, StateFailed, conn.State())
}

func TestConnection_StreamingListKeys(t *testing.T) {
	store := testutils.NewMemoryStore()
	node := testutils.NewFakeNode(t, store.Handle)
	conn, _ := connectTo(t, configFor(node))

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		cmd, err := NewStoreValue(StoreOptions{Bucket: "users", Key: key, Value: []byte(key)})
		require.NoError(t, err)
		require.NoError(t, conn.Send(cmd))
		require.NoError(t, waitCmd(t, cmd))
	}

	var chunks [][]string
	cmd, err := NewListKeys(ListKeysOptions{
		Bucket: "users",
		OnKeys: func(keys []string) { chunks = append(chunks, keys) },
	})
	require.NoError(t, err)
	require.NoError(t, conn.Send(cmd))
	require.NoError(t, waitCmd(t, cmd))

	// chunks of 2 plus an empty done frame
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunks)
	assert.False(t, conn.InFlight())
	assert.Equal(t, StateConnected, conn.State())
}

func TestConnection_ChunkCallbackCanCallBack(t *testing.T) {
	store := testutils.NewMemoryStore()
	node := testutils.NewFakeNode(t, store.Handle)
	conn, _ := connectTo(t, configFor(node))

	for _, key := range []string{"a", "b", "c"} {
		cmd, err := NewStoreValue(StoreOptions{Bucket: "users", Key: key, Value: []byte(key)})
		require.NoError(t, err)
		require.NoError(t, conn.Send(cmd))
		require.NoError(t, waitCmd(t, cmd))
	}

	var states []State
	cmd, err := NewListKeys(ListKeysOptions{
		Bucket: "users",
		OnKeys: func(keys []string) { states = append(states, conn.State()) },
	})
	require.NoError(t, err)
	require.NoError(t, conn.Send(cmd))
	require.NoError(t, waitCmd(t, cmd))

	assert.Equal(t, []State{StateConnected, StateConnected}, states)
}

func TestConnection_ListenerCanCallBack(t *testing.T) {
	node := testutils.NewFakeNode(t, testutils.NewMemoryStore().Handle)

	var conn *Connection
	events := make(chan Event, 4)
	conn, err := NewConnection(configFor(node), func(ev Event) {
		if ev.Type == EventConnected {
			conn.Close()
		}
		events <- ev
	})
	require.NoError(t, err)
	require.NoError(t, conn.Connect())

	var got []EventType
	for range 2 {
		select {
		case ev := <-events:
			got = append(got, ev.Type)
		case <-time.After(eventTimeout):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, []EventType{EventConnected, EventConnectionClosed}, got)
	assert.Equal(t, StateClosed, conn.State())
}

func TestDial(t *testing.T) {
	node := testutils.NewFakeNode(t, testutils.NewMemoryStore().Handle)

	conn, err := Dial(context.Background(), configFor(node))
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, StateConnected, conn.State())
}

func TestDial_Refused(t *testing.T) {
	host, port := testutils.ClosedAddr(t)

	_, err := Dial(context.Background(), ConnectionConfig{Address: host, Port: port})
	var cerr *ConnectError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ConnectRefused, cerr.Reason)
}

func TestDial_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, ConnectionConfig{
		Address:        "10.255.255.1",
		Port:           8087,
		ConnectTimeout: time.Minute,
		Dialer:         testutils.HangingDialer{},
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateClosed.Terminal())
	assert.False(t, StateClosing.Terminal())
}
