package transport

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/pipewright/pipewright/internal/protocol"
	"github.com/pipewright/pipewright/internal/protocol/frame"
)

var (
	ErrTransportClosed = errors.New("transport: closed")
	ErrNoMessageHook   = errors.New("transport: no message callback registered")
)

// Transport frames and unframes messages over one duplex stream.
type Transport interface {
	// Send enqueues one length-prefixed frame. Safe for concurrent use.
	Send(msg *protocol.Message) error
	// Run blocks reading frames and invoking the registered callback until
	// the stream ends. A clean end-of-stream after Stop returns nil.
	Run() error
	// Stop closes the write side; the read loop exits on the next boundary.
	Stop()
	// OnMessage registers the inbound callback. Must be called before Run.
	OnMessage(fn func(*protocol.Message))
}

// StreamTransport runs the framing protocol over a caller-supplied
// reader/writer pair.
type StreamTransport struct {
	reader    *bufio.Reader
	writer    io.Writer
	closer    io.Closer
	limits    frame.Limits
	writeMu   sync.Mutex
	stopped   atomic.Bool
	onMessage func(*protocol.Message)
}

func NewStreamTransport(r io.Reader, w io.WriteCloser) *StreamTransport {
	return &StreamTransport{
		reader: bufio.NewReader(r),
		writer: w,
		closer: w,
		limits: frame.DefaultLimits(),
	}
}

func (t *StreamTransport) OnMessage(fn func(*protocol.Message)) {
	t.onMessage = fn
}

func (t *StreamTransport) Send(msg *protocol.Message) error {
	if t.stopped.Load() {
		return ErrTransportClosed
	}
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := frame.Write(t.writer, payload, t.limits); err != nil {
		if t.stopped.Load() {
			return ErrTransportClosed
		}
		return err
	}
	return nil
}

func (t *StreamTransport) Run() error {
	if t.onMessage == nil {
		return ErrNoMessageHook
	}
	for {
		payload, err := frame.Read(t.reader, t.limits)
		if err != nil {
			if errors.Is(err, io.EOF) || t.stopped.Load() {
				return nil
			}
			return errors.Join(ErrTransportClosed, err)
		}
		if t.stopped.Load() {
			return nil
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			log.Error().Err(err).Int("bytes", len(payload)).Msg("transport: drop undecodable frame")
			return errors.Join(ErrTransportClosed, err)
		}
		t.onMessage(msg)
	}
}

func (t *StreamTransport) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	if t.closer != nil {
		_ = t.closer.Close()
	}
}
