package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/pipewright/pipewright/internal/rpc"
)

// Browser is one running browser instance.
type Browser struct {
	*rpc.ChannelOwner

	browserType *BrowserType

	mu        sync.Mutex
	contexts  []*BrowserContext
	connected bool
}

func newBrowser(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	b := &Browser{
		ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer),
		connected:    true,
	}
	b.browserType, _ = parent.Self().(*BrowserType)
	b.On("close", func(any) {
		b.mu.Lock()
		b.connected = false
		b.mu.Unlock()
	})
	b.Bind(b)
	return b
}

func (b *Browser) Version() string {
	return b.InitializerString("version")
}

func (b *Browser) BrowserType() *BrowserType {
	return b.browserType
}

func (b *Browser) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *Browser) Contexts() []*BrowserContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*BrowserContext, len(b.contexts))
	copy(out, b.contexts)
	return out
}

// NewContext creates an isolated browsing context.
func (b *Browser) NewContext(ctx context.Context, options map[string]any) (*BrowserContext, error) {
	result, err := b.Channel().Send(ctx, "newContext", options)
	if err != nil {
		return nil, err
	}
	bc := asBrowserContext(result)
	if bc == nil {
		return nil, fmt.Errorf("client: newContext returned %T, expected a browser context", result)
	}
	bc.browser = b
	b.mu.Lock()
	b.contexts = append(b.contexts, bc)
	b.mu.Unlock()
	return bc, nil
}

// NewPage creates a context owning exactly one page; closing the page closes
// its context.
func (b *Browser) NewPage(ctx context.Context, options map[string]any) (*Page, error) {
	bc, err := b.NewContext(ctx, options)
	if err != nil {
		return nil, err
	}
	page, err := bc.NewPage(ctx)
	if err != nil {
		_ = bc.Close(ctx)
		return nil, err
	}
	page.ownedContext = bc
	return page, nil
}

// Close shuts the browser down. The race where someone else already closed
// it is swallowed; every other error propagates.
func (b *Browser) Close(ctx context.Context) error {
	if _, err := b.Channel().Send(ctx, "close", nil); err != nil && !rpc.IsSafeCloseError(err) {
		return err
	}
	return nil
}

func (b *Browser) removeContext(bc *BrowserContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.contexts {
		if cur == bc {
			b.contexts = append(b.contexts[:i], b.contexts[i+1:]...)
			return
		}
	}
}
