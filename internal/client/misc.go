package client

import (
	"context"

	"github.com/pipewright/pipewright/internal/rpc"
)

// Worker is a web worker spawned by a page.
type Worker struct {
	*rpc.ChannelOwner
}

func newWorker(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	w := &Worker{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	w.Bind(w)
	return w
}

func (w *Worker) URL() string {
	return w.InitializerString("url")
}

// Download is one in-progress or finished download.
type Download struct {
	*rpc.ChannelOwner
}

func newDownload(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	d := &Download{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	d.Bind(d)
	return d
}

func (d *Download) URL() string {
	return d.InitializerString("url")
}

func (d *Download) SuggestedFilename() string {
	return d.InitializerString("suggestedFilename")
}

// Path blocks until the download finishes and returns its local path.
func (d *Download) Path(ctx context.Context) (string, error) {
	result, err := d.Channel().Send(ctx, "path", nil)
	if err != nil {
		return "", err
	}
	path, _ := result.(string)
	return path, nil
}

func (d *Download) Delete(ctx context.Context) error {
	_, err := d.Channel().Send(ctx, "delete", nil)
	return err
}

// Dialog is a javascript dialog (alert, confirm, prompt) awaiting a verdict.
type Dialog struct {
	*rpc.ChannelOwner
}

func newDialog(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	d := &Dialog{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	d.Bind(d)
	return d
}

func (d *Dialog) Type() string {
	return d.InitializerString("type")
}

func (d *Dialog) Message() string {
	return d.InitializerString("message")
}

func (d *Dialog) DefaultValue() string {
	return d.InitializerString("defaultValue")
}

func (d *Dialog) Accept(ctx context.Context, promptText string) error {
	params := map[string]any{}
	if promptText != "" {
		params["promptText"] = promptText
	}
	_, err := d.Channel().Send(ctx, "accept", params)
	return err
}

func (d *Dialog) Dismiss(ctx context.Context) error {
	_, err := d.Channel().Send(ctx, "dismiss", nil)
	return err
}

// ConsoleMessage is one console entry emitted by a page.
type ConsoleMessage struct {
	*rpc.ChannelOwner
}

func newConsoleMessage(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	m := &ConsoleMessage{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	m.Bind(m)
	return m
}

func (m *ConsoleMessage) Type() string {
	return m.InitializerString("type")
}

func (m *ConsoleMessage) Text() string {
	return m.InitializerString("text")
}

// Args returns handles to the values passed to the console call.
func (m *ConsoleMessage) Args() []*JSHandle {
	raw, _ := m.Initializer()["args"].([]any)
	out := make([]*JSHandle, 0, len(raw))
	for _, item := range raw {
		if h, ok := item.(*JSHandle); ok {
			out = append(out, h)
		}
	}
	return out
}

// CDPSession is a raw devtools protocol session.
type CDPSession struct {
	*rpc.ChannelOwner
}

func newCDPSession(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	s := &CDPSession{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	s.Bind(s)
	return s
}

// Send issues one raw protocol command.
func (s *CDPSession) Send(ctx context.Context, method string, params map[string]any) (any, error) {
	return s.Channel().Send(ctx, "send", map[string]any{
		"method": method,
		"params": params,
	})
}

func (s *CDPSession) Detach(ctx context.Context) error {
	_, err := s.Channel().Send(ctx, "detach", nil)
	return err
}

// Selectors is the custom selector engine registry.
type Selectors struct {
	*rpc.ChannelOwner
}

func newSelectors(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	s := &Selectors{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	s.Bind(s)
	return s
}

// Register installs a selector engine under name.
func (s *Selectors) Register(ctx context.Context, name, script string, contentScript bool) error {
	params := map[string]any{
		"name":   name,
		"source": script,
	}
	if contentScript {
		params["contentScript"] = true
	}
	_, err := s.Channel().Send(ctx, "register", params)
	return err
}

// BindingCall is one invocation of a page binding, answered out of band.
type BindingCall struct {
	*rpc.ChannelOwner
}

func newBindingCall(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	b := &BindingCall{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	b.Bind(b)
	return b
}

func (b *BindingCall) Name() string {
	return b.InitializerString("name")
}

// Stream is a driver-side byte stream handle.
type Stream struct {
	*rpc.ChannelOwner
}

func newStream(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	s := &Stream{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	s.Bind(s)
	return s
}

// Artifact is a file produced on the driver side (trace, video, download).
type Artifact struct {
	*rpc.ChannelOwner
}

func newArtifact(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	a := &Artifact{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	a.Bind(a)
	return a
}

func (a *Artifact) AbsolutePath() string {
	return a.InitializerString("absolutePath")
}

// SaveAs copies the artifact to a caller-chosen path.
func (a *Artifact) SaveAs(ctx context.Context, path string) error {
	_, err := a.Channel().Send(ctx, "saveAs", map[string]any{"path": path})
	return err
}

func (a *Artifact) Delete(ctx context.Context) error {
	_, err := a.Channel().Send(ctx, "delete", nil)
	return err
}
