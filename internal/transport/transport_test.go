package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/pipewright/pipewright/internal/protocol"
	"github.com/pipewright/pipewright/internal/protocol/frame"
	"github.com/pipewright/pipewright/internal/testutil/testlog"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func encodeFrame(t *testing.T, buf *bytes.Buffer, msg *protocol.Message) {
	t.Helper()
	payload, err := protocol.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := frame.Write(buf, payload, frame.DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestStreamTransportDispatchesUntilEOF(t *testing.T) {
	testlog.Start(t)

	var in bytes.Buffer
	encodeFrame(t, &in, &protocol.Message{GUID: "page@1", Method: "console", Params: map[string]any{}})
	encodeFrame(t, &in, &protocol.Message{ID: 1, GUID: "", Result: map[string]any{"ok": true}})

	tr := NewStreamTransport(&in, nopWriteCloser{io.Discard})
	var got []*protocol.Message
	tr.OnMessage(func(msg *protocol.Message) {
		got = append(got, msg)
	})

	if err := tr.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Method != "console" || got[1].ID != 1 {
		t.Fatalf("unexpected dispatch order: %+v", got)
	}
}

func TestStreamTransportRequiresCallback(t *testing.T) {
	tr := NewStreamTransport(bytes.NewReader(nil), nopWriteCloser{io.Discard})
	if err := tr.Run(); !errors.Is(err, ErrNoMessageHook) {
		t.Fatalf("expected ErrNoMessageHook, got %v", err)
	}
}

func TestStreamTransportSendFrames(t *testing.T) {
	var out bytes.Buffer
	tr := NewStreamTransport(bytes.NewReader(nil), nopWriteCloser{&out})

	msg := &protocol.Message{ID: 5, GUID: "browser@1", Method: "close", Params: map[string]any{}}
	if err := tr.Send(msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	payload, err := frame.Read(&out, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	decoded, err := protocol.Decode(payload)
	if err != nil {
		t.Fatalf("decode back: %v", err)
	}
	if decoded.ID != 5 || decoded.Method != "close" {
		t.Fatalf("unexpected round trip: %+v", decoded)
	}
}

func TestStreamTransportSendAfterStop(t *testing.T) {
	tr := NewStreamTransport(bytes.NewReader(nil), nopWriteCloser{io.Discard})
	tr.Stop()
	err := tr.Send(&protocol.Message{ID: 1, Params: map[string]any{}})
	if !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed, got %v", err)
	}
}

func TestStreamTransportMidFrameBreakIsFatal(t *testing.T) {
	testlog.Start(t)

	var in bytes.Buffer
	in.Write([]byte{0xff, 0x00, 0x00, 0x00})
	in.WriteString("short")

	tr := NewStreamTransport(&in, nopWriteCloser{io.Discard})
	tr.OnMessage(func(*protocol.Message) {})
	err := tr.Run()
	if !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed, got %v", err)
	}
	if !errors.Is(err, frame.ErrTruncated) {
		t.Fatalf("expected truncation cause, got %v", err)
	}
}

func TestStreamTransportUndecodableFrameIsFatal(t *testing.T) {
	testlog.Start(t)

	var in bytes.Buffer
	if err := frame.Write(&in, []byte("{not json"), frame.DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	tr := NewStreamTransport(&in, nopWriteCloser{io.Discard})
	tr.OnMessage(func(*protocol.Message) {})
	if err := tr.Run(); !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed, got %v", err)
	}
}

func TestStreamTransportStopSuppressesReadError(t *testing.T) {
	pr, pw := io.Pipe()
	tr := NewStreamTransport(pr, nopWriteCloser{io.Discard})
	tr.OnMessage(func(*protocol.Message) {})

	done := make(chan error, 1)
	go func() {
		done <- tr.Run()
	}()

	tr.Stop()
	_ = pw.CloseWithError(errors.New("driver died"))
	if err := <-done; err != nil {
		t.Fatalf("expected clean exit after stop, got %v", err)
	}
}

func TestPipeConfigValidate(t *testing.T) {
	if err := (PipeConfig{}).Validate(); !errors.Is(err, ErrDriverPathRequired) {
		t.Fatalf("expected ErrDriverPathRequired, got %v", err)
	}
	if err := (PipeConfig{Path: "  "}).Validate(); !errors.Is(err, ErrDriverPathRequired) {
		t.Fatalf("expected ErrDriverPathRequired for blank path, got %v", err)
	}
	if err := (PipeConfig{Path: "/usr/bin/driver"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
