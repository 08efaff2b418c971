package riak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pior/riak/internal/coarsetime"
	"github.com/pior/riak/pb"
)

const (
	DefaultConnectTimeout = 3 * time.Second
	DefaultReadBufferSize = 16 * 1024
)

// State is the lifecycle state of a Connection.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Terminal reports whether no transition can leave s.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// EventType identifies a lifecycle notification.
type EventType int

const (
	// EventConnected fires once the socket is established.
	EventConnected EventType = iota + 1
	// EventConnectFailed fires when the connection never got established.
	// Err is a *ConnectError.
	EventConnectFailed
	// EventConnectionClosed fires when an established connection ends.
	// Err is nil for a Close by the owner.
	EventConnectionClosed
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connectFailed"
	case EventConnectionClosed:
		return "connectionClosed"
	default:
		return "EventType(" + strconv.Itoa(int(t)) + ")"
	}
}

// Event is a lifecycle notification.
type Event struct {
	Type EventType
	Err  error
}

// Listener receives lifecycle events in order, from a goroutine owned by the
// connection. It may call back into the connection.
type Listener func(Event)

// Dialer opens the socket. *net.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ConnectionConfig holds the parameters of a single connection.
type ConnectionConfig struct {
	// Address is the remote host. Required.
	Address string

	// Port is the remote port. Required.
	Port int

	// ConnectTimeout bounds the connect phase only, not requests.
	// Defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// MaxFrameSize rejects inbound frames declaring a larger length.
	// Zero means no limit.
	MaxFrameSize uint32

	// ReadBufferSize is the size of the socket read buffer.
	// Defaults to DefaultReadBufferSize.
	ReadBufferSize int

	// Dialer opens the socket. Defaults to a zero net.Dialer.
	Dialer Dialer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Validate checks the required fields.
func (c ConnectionConfig) Validate() error {
	if c.Address == "" {
		return errors.New("riak: connection address is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("riak: invalid connection port %d", c.Port)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("riak: negative connect timeout %s", c.ConnectTimeout)
	}
	if c.ReadBufferSize < 0 {
		return fmt.Errorf("riak: negative read buffer size %d", c.ReadBufferSize)
	}
	return nil
}

func (c ConnectionConfig) withDefaults() ConnectionConfig {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Connection owns one TCP socket and serves one command at a time.
//
// Lifecycle: Idle -> Connecting -> Connected -> Closing -> Closed, with
// Connecting -> Failed and Connected -> Failed on errors. Exactly one terminal
// event is emitted per connection attempt.
//
// Commands are called back from the connection's reader goroutine with the
// connection lock held: OnFrame and OnError must not block and must not call
// into the connection.
type Connection struct {
	cfg    ConnectionConfig
	addr   string
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	conn       net.Conn
	inFlight   Command
	decoder    pb.Decoder
	timer      *time.Timer
	cancelDial context.CancelCauseFunc
	listener   Listener
	events     chan Event
	lastUsed   time.Time
}

// NewConnection returns an idle connection. The listener may be nil.
func NewConnection(cfg ConnectionConfig, listener Listener) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	addr := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
	return &Connection{
		cfg:      cfg,
		addr:     addr,
		logger:   cfg.Logger.With("addr", addr),
		listener: listener,
		decoder:  pb.Decoder{MaxFrameSize: cfg.MaxFrameSize},
	}, nil
}

// Dial connects and waits until the connection is established or failed.
// Cancelling ctx aborts the attempt.
func Dial(ctx context.Context, cfg ConnectionConfig) (*Connection, error) {
	result := make(chan error, 1)
	c, err := NewConnection(cfg, func(ev Event) {
		switch ev.Type {
		case EventConnected, EventConnectFailed:
			result <- ev.Err
		}
	})
	if err != nil {
		return nil, err
	}

	if err := c.Connect(); err != nil {
		return nil, err
	}

	select {
	case err := <-result:
		if err != nil {
			return nil, err
		}
		return c, nil
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}
}

// Addr returns the remote host:port.
func (c *Connection) Addr() string {
	return c.addr
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InFlight reports whether a command is bound to the connection.
func (c *Connection) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight != nil
}

// LastUsed returns when the connection last sent or received data.
func (c *Connection) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Connect starts connecting in the background and returns immediately.
// The outcome is reported to the listener.
func (c *Connection) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return fmt.Errorf("%w: connect while %s", ErrInvalidState, c.state)
	}

	c.state = StateConnecting
	c.events = make(chan Event, 2) // connected + one terminal event
	go dispatch(c.events, c.listener)
	c.listener = nil

	ctx, cancel := context.WithCancelCause(context.Background())
	c.cancelDial = cancel
	c.timer = time.AfterFunc(c.cfg.ConnectTimeout, c.connectTimeout)

	c.logger.Debug("riak: connecting", "timeout", c.cfg.ConnectTimeout)
	go c.dial(ctx)
	return nil
}

func dispatch(events <-chan Event, listener Listener) {
	for ev := range events {
		if listener != nil {
			listener(ev)
		}
	}
}

func (c *Connection) dial(ctx context.Context) {
	conn, err := c.cfg.Dialer.DialContext(ctx, "tcp", c.addr)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnecting {
		// already resolved by the timer or Close
		if conn != nil {
			conn.Close()
		}
		return
	}

	c.timer.Stop()
	c.cancelDial(nil)

	if err != nil {
		reason := ConnectRefused
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			reason = ConnectTimeout
		}
		c.state = StateFailed
		cerr := &ConnectError{Addr: c.addr, Reason: reason, Err: err}
		c.logger.Warn("riak: connect failed", "reason", reason, "error", err)
		c.emitLocked(Event{Type: EventConnectFailed, Err: cerr}, true)
		return
	}

	c.conn = conn
	c.state = StateConnected
	c.lastUsed = coarsetime.Now()
	c.logger.Debug("riak: connected")
	c.emitLocked(Event{Type: EventConnected}, false)

	go c.readLoop(conn)
}

func (c *Connection) connectTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnecting {
		return
	}

	c.state = StateFailed
	cerr := &ConnectError{Addr: c.addr, Reason: ConnectTimeout, Err: context.DeadlineExceeded}
	c.cancelDial(cerr)
	c.logger.Warn("riak: connect timed out", "timeout", c.cfg.ConnectTimeout)
	c.emitLocked(Event{Type: EventConnectFailed, Err: cerr}, true)
}

// Send binds cmd to the connection and writes its request frame.
//
// It returns ErrNotConnected outside the connected state and
// ErrCommandInFlight while a previous command is bound; in both cases the
// command is untouched. Once Send returns nil the command receives exactly one
// outcome through OnFrame or OnError.
func (c *Connection) Send(cmd Command) error {
	c.mu.Lock()
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: send while %s", ErrNotConnected, state)
	}
	if c.inFlight != nil {
		c.mu.Unlock()
		return ErrCommandInFlight
	}

	code, payload, err := cmd.Encode()
	if err != nil {
		c.mu.Unlock()
		return err
	}

	c.inFlight = cmd
	c.lastUsed = coarsetime.Now()
	conn := c.conn
	c.mu.Unlock()

	// Written outside the lock so Close can interrupt a blocked write.
	if _, err := conn.Write(pb.Encode(code, payload)); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.inFlight != cmd {
			// Close or the reader already delivered the outcome
			return nil
		}
		c.inFlight = nil
		werr := fmt.Errorf("%w: write: %w", ErrConnectionClosed, err)
		c.failLocked(werr)
		return werr
	}
	return nil
}

// Close tears the connection down. It is safe in any state and idempotent.
// A command in flight fails with ErrConnectionClosed.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateIdle:
		c.state = StateClosed
		c.listener = nil
		return nil
	case StateClosing, StateClosed, StateFailed:
		return nil
	}

	prev := c.state
	c.state = StateClosing

	if prev == StateConnecting {
		c.timer.Stop()
		cerr := &ConnectError{Addr: c.addr, Reason: ConnectAborted, Err: ErrConnectionClosed}
		c.cancelDial(cerr)
		c.state = StateClosed
		c.logger.Debug("riak: connect aborted")
		c.emitLocked(Event{Type: EventConnectFailed, Err: cerr}, true)
		return nil
	}

	err := c.conn.Close()
	c.failInFlightLocked(ErrConnectionClosed)
	c.state = StateClosed
	c.logger.Debug("riak: connection closed")
	c.emitLocked(Event{Type: EventConnectionClosed}, true)
	return err
}

func (c *Connection) readLoop(conn net.Conn) {
	buf := make([]byte, c.cfg.ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 && !c.handleData(buf[:n]) {
			return
		}
		if err != nil {
			c.handleReadError(err)
			return
		}
	}
}

// handleData feeds a chunk to the decoder and routes every complete frame.
// It returns false once the connection is no longer connected.
func (c *Connection) handleData(chunk []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return false
	}
	c.lastUsed = coarsetime.Now()

	for frame, err := range c.decoder.Feed(chunk) {
		if err == nil {
			err = c.routeLocked(frame)
		}
		if err != nil {
			c.logger.Error("riak: protocol failure", "code", frame.Code, "error", err)
			c.failLocked(err)
			return false
		}
	}
	return true
}

// routeLocked delivers one frame to the command in flight. A returned error
// is fatal to the connection and leaves the command bound so failLocked can
// deliver it.
func (c *Connection) routeLocked(frame pb.Frame) error {
	cmd := c.inFlight
	if cmd == nil {
		return &pb.ProtocolError{Message: "unsolicited " + pb.CodeName(frame.Code) + " frame"}
	}

	switch frame.Code {
	case pb.CodeErrorResp:
		respErr, err := pb.UnmarshalErrorResp(frame.Payload)
		if err != nil {
			return err
		}
		c.inFlight = nil
		c.logger.Debug("riak: error response", "code", respErr.Code, "message", respErr.Message)
		cmd.OnError(respErr)
		return nil

	case cmd.ExpectedCode():
		done, err := cmd.OnFrame(frame.Payload)
		if err != nil {
			var derr *pb.DecodeError
			if !errors.As(err, &derr) {
				err = &pb.DecodeError{Code: frame.Code, Err: err}
			}
			return err
		}
		if done {
			c.inFlight = nil
		}
		return nil

	default:
		return &pb.ProtocolError{Message: fmt.Sprintf("unexpected %s (code %d), expecting %s",
			pb.CodeName(frame.Code), frame.Code, pb.CodeName(cmd.ExpectedCode()))}
	}
}

func (c *Connection) handleReadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected {
		return
	}
	c.logger.Warn("riak: connection lost", "error", err)
	c.failLocked(fmt.Errorf("%w: %w", ErrConnectionClosed, err))
}

// failLocked moves a connected connection to Failed.
func (c *Connection) failLocked(err error) {
	if c.state != StateConnected {
		return
	}
	c.state = StateFailed
	c.conn.Close()
	c.failInFlightLocked(err)
	c.emitLocked(Event{Type: EventConnectionClosed, Err: err}, true)
}

func (c *Connection) failInFlightLocked(err error) {
	if c.inFlight == nil {
		return
	}
	cmd := c.inFlight
	c.inFlight = nil
	cmd.OnError(err)
}

// emitLocked queues an event for the listener. The buffer holds every event
// a connection can emit, so this never blocks.
func (c *Connection) emitLocked(ev Event, terminal bool) {
	c.events <- ev
	if terminal {
		close(c.events)
	}
}
