package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pipewright/pipewright/internal/rpc"
)

// Page is one tab (or popup) inside a browsing context.
type Page struct {
	*rpc.ChannelOwner

	context      *BrowserContext
	ownedContext *BrowserContext
	mainFrame    *Frame

	mu     sync.Mutex
	frames []*Frame
	closed bool
}

func newPage(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	p := &Page{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	p.mainFrame, _ = initializer["mainFrame"].(*Frame)
	if p.mainFrame != nil {
		p.mainFrame.page = p
		p.frames = []*Frame{p.mainFrame}
	}
	p.On("close", func(any) {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
	})
	p.On("frameAttached", func(payload any) {
		params, _ := payload.(map[string]any)
		if frame, ok := params["frame"].(*Frame); ok {
			frame.page = p
			p.mu.Lock()
			p.frames = append(p.frames, frame)
			p.mu.Unlock()
		}
	})
	p.On("frameDetached", func(payload any) {
		params, _ := payload.(map[string]any)
		if frame, ok := params["frame"].(*Frame); ok {
			p.mu.Lock()
			for i, cur := range p.frames {
				if cur == frame {
					p.frames = append(p.frames[:i], p.frames[i+1:]...)
					break
				}
			}
			p.mu.Unlock()
		}
	})
	p.SetEventToSubscriptionMapping(map[string]string{
		"console":         "console",
		"dialog":          "dialog",
		"request":         "request",
		"response":        "response",
		"requestFinished": "requestFinished",
		"requestFailed":   "requestFailed",
	})
	p.Bind(p)
	return p
}

func (p *Page) Context() *BrowserContext {
	return p.context
}

func (p *Page) MainFrame() *Frame {
	return p.mainFrame
}

func (p *Page) Frames() []*Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Frame, len(p.frames))
	copy(out, p.frames)
	return out
}

func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) URL() string {
	if p.mainFrame == nil {
		return ""
	}
	return p.mainFrame.URL()
}

func (p *Page) Title(ctx context.Context) (string, error) {
	if p.mainFrame == nil {
		return "", fmt.Errorf("client: page has no main frame")
	}
	return p.mainFrame.Title(ctx)
}

// Goto navigates the main frame and returns its primary response.
func (p *Page) Goto(ctx context.Context, url string, options map[string]any) (*Response, error) {
	if p.mainFrame == nil {
		return nil, fmt.Errorf("client: page has no main frame")
	}
	return p.mainFrame.Goto(ctx, url, options)
}

func (p *Page) Click(ctx context.Context, selector string, options map[string]any) error {
	if p.mainFrame == nil {
		return fmt.Errorf("client: page has no main frame")
	}
	return p.mainFrame.Click(ctx, selector, options)
}

// Reload re-navigates the page and returns the resulting response, which may
// be absent.
func (p *Page) Reload(ctx context.Context, options map[string]any) (*Response, error) {
	result, err := p.Channel().Send(ctx, "reload", options)
	if err != nil {
		return nil, err
	}
	response, _ := result.(*Response)
	return response, nil
}

// Close closes the page (and, for pages opened via Browser.NewPage, the
// context that owns it). Already-closed races are swallowed.
func (p *Page) Close(ctx context.Context, options map[string]any) error {
	if _, err := p.Channel().Send(ctx, "close", options); err != nil && !rpc.IsSafeCloseError(err) {
		return err
	}
	if p.ownedContext != nil {
		return p.ownedContext.Close(ctx)
	}
	return nil
}

// ExpectEvent waits for one firing of event that the optional predicate
// accepts. A zero timeout applies the connection's default timeout; a
// negative timeout waits unbounded. The wait is abandoned if the page closes
// or crashes first, unless that is the very event being awaited.
func (p *Page) ExpectEvent(ctx context.Context, event string, predicate func(any) bool, timeout time.Duration) (any, error) {
	switch {
	case timeout == 0:
		timeout = p.Connection().DefaultTimeout()
	case timeout < 0:
		timeout = 0
	}
	w := rpc.NewWaitHelper(p.ChannelOwner, event)
	w.RejectOnTimeout(timeout, fmt.Sprintf("Timeout %v exceeded while waiting for event %q", timeout, event))
	if event != "close" {
		w.RejectOnEvent(p.Emitter, "close", rpc.NewTargetClosedError("Page closed"), nil)
	}
	if event != "crash" {
		w.RejectOnEvent(p.Emitter, "crash", &rpc.DriverError{Name: "Error", Message: "Page crashed"}, nil)
	}
	w.WaitForEvent(p.Emitter, event, predicate)
	return w.Await(ctx)
}
