package riak

import (
	"context"
	"sync"
)

// Command is one request/response exchange on a Connection.
//
// A command is either single-shot (OnFrame always returns done) or streaming
// (OnFrame returns done only on the frame carrying the end-of-stream flag).
// The connection treats both the same way.
type Command interface {
	// Encode returns the request message code and payload. It is called once,
	// before the request is written.
	Encode() (code byte, payload []byte, err error)

	// ExpectedCode is the message code of a successful response frame.
	ExpectedCode() byte

	// OnFrame decodes one response payload. done releases the command from
	// the connection; a non-nil error fails the command through OnError and
	// closes the connection.
	OnFrame(payload []byte) (done bool, err error)

	// OnError delivers a terminal failure: an error response from the
	// server, a decode error or a connection failure.
	OnError(err error)
}

// Awaitable is a Command whose completion can be waited on.
// All the commands of this package implement it.
type Awaitable interface {
	Command

	// Done is closed when the command has its outcome.
	Done() <-chan struct{}

	// Err returns the failure, if any, once Done is closed.
	Err() error
}

// Wait blocks until cmd completes or ctx is done.
func Wait(ctx context.Context, cmd Awaitable) error {
	select {
	case <-cmd.Done():
		return cmd.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// result is the completion sink shared by the commands of this package.
type result[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func (r *result[T]) init() {
	r.done = make(chan struct{})
}

func (r *result[T]) complete(v T) {
	r.once.Do(func() {
		r.value = v
		close(r.done)
	})
}

// OnError implements Command.
func (r *result[T]) OnError(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Done implements Awaitable.
func (r *result[T]) Done() <-chan struct{} {
	return r.done
}

// Err implements Awaitable.
func (r *result[T]) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Result returns the value and error once Done is closed.
func (r *result[T]) Result() (T, error) {
	<-r.done
	return r.value, r.err
}

// chunkQueue delivers the chunks of a streaming response to a user callback
// on its own goroutine, in order, outside the connection lock. The command's
// outcome is settled only after every queued chunk was delivered.
type chunkQueue struct {
	fn func([]string)

	mu      sync.Mutex
	pending [][]string
	last    func()
	running bool
}

func newChunkQueue(fn func([]string)) *chunkQueue {
	if fn == nil {
		return nil
	}
	return &chunkQueue{fn: fn}
}

func (q *chunkQueue) push(chunk []string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, chunk)
	q.startLocked()
}

// settle runs f once the queue is drained. A nil queue runs f immediately.
func (q *chunkQueue) settle(f func()) {
	if q == nil {
		f()
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.last = f
	q.startLocked()
}

func (q *chunkQueue) startLocked() {
	if q.running {
		return
	}
	q.running = true
	go q.run()
}

func (q *chunkQueue) run() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			last := q.last
			q.last = nil
			q.running = false
			q.mu.Unlock()

			if last != nil {
				last()
			}
			return
		}
		chunk := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.fn(chunk)
	}
}
