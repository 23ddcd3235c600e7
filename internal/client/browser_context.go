package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/pipewright/pipewright/internal/rpc"
)

// BrowserContext is an isolated browsing session within a browser instance.
type BrowserContext struct {
	*rpc.ChannelOwner

	browser *Browser

	mu    sync.Mutex
	pages []*Page
}

// asBrowserContext unwraps either context subtype to the base.
func asBrowserContext(v any) *BrowserContext {
	switch t := v.(type) {
	case *BrowserContext:
		return t
	case *ChromiumBrowserContext:
		return &t.BrowserContext
	}
	return nil
}

// newBrowserContextFor picks the context subtype from the parent's browser
// flavor: a chromium-flavored parent yields the richer ChromiumBrowserContext.
func newBrowserContextFor(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	var browserName string
	switch p := parent.Self().(type) {
	case *Browser:
		if p.browserType != nil {
			browserName = p.browserType.Name()
		}
	case *BrowserType:
		browserName = p.Name()
	}
	if browserName == "chromium" {
		return newChromiumBrowserContext(parent, objType, guid, initializer)
	}
	return newBrowserContext(parent, objType, guid, initializer)
}

func newBrowserContext(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	bc := &BrowserContext{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	bc.initHooks()
	bc.Bind(bc)
	return bc
}

func (bc *BrowserContext) initHooks() {
	bc.On("page", func(payload any) {
		params, _ := payload.(map[string]any)
		if page, ok := params["page"].(*Page); ok {
			bc.mu.Lock()
			bc.pages = append(bc.pages, page)
			bc.mu.Unlock()
			page.context = bc
		}
	})
	bc.On("close", func(any) {
		if bc.browser != nil {
			bc.browser.removeContext(bc)
		}
	})
}

func (bc *BrowserContext) Browser() *Browser {
	return bc.browser
}

func (bc *BrowserContext) Pages() []*Page {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	out := make([]*Page, len(bc.pages))
	copy(out, bc.pages)
	return out
}

// NewPage opens a tab in this context.
func (bc *BrowserContext) NewPage(ctx context.Context) (*Page, error) {
	result, err := bc.Channel().Send(ctx, "newPage", nil)
	if err != nil {
		return nil, err
	}
	page, ok := result.(*Page)
	if !ok {
		return nil, fmt.Errorf("client: newPage returned %T, expected *Page", result)
	}
	page.context = bc
	bc.mu.Lock()
	bc.pages = append(bc.pages, page)
	bc.mu.Unlock()
	return page, nil
}

// Cookies returns the context's cookies, optionally filtered by URLs.
func (bc *BrowserContext) Cookies(ctx context.Context, urls []string) ([]any, error) {
	params := map[string]any{}
	if len(urls) > 0 {
		cast := make([]any, len(urls))
		for i, u := range urls {
			cast[i] = u
		}
		params["urls"] = cast
	}
	result, err := bc.Channel().Send(ctx, "cookies", params)
	if err != nil {
		return nil, err
	}
	cookies, _ := result.([]any)
	return cookies, nil
}

// AddCookies installs cookies into the context.
func (bc *BrowserContext) AddCookies(ctx context.Context, cookies []any) error {
	_, err := bc.Channel().Send(ctx, "addCookies", map[string]any{"cookies": cookies})
	return err
}

// Close tears down the context and every page in it. Already-closed races
// are swallowed.
func (bc *BrowserContext) Close(ctx context.Context) error {
	if _, err := bc.Channel().Send(ctx, "close", nil); err != nil && !rpc.IsSafeCloseError(err) {
		return err
	}
	return nil
}

// ChromiumBrowserContext adds the CDP surface available when the parent
// browser flavor is chromium.
type ChromiumBrowserContext struct {
	BrowserContext
}

func newChromiumBrowserContext(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	bc := &ChromiumBrowserContext{
		BrowserContext: BrowserContext{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)},
	}
	bc.initHooks()
	bc.Bind(bc)
	return bc
}

// NewCDPSession opens a raw devtools session against one page.
func (bc *ChromiumBrowserContext) NewCDPSession(ctx context.Context, page *Page) (*CDPSession, error) {
	result, err := bc.Channel().Send(ctx, "crNewCDPSession", map[string]any{"page": page})
	if err != nil {
		return nil, err
	}
	session, ok := result.(*CDPSession)
	if !ok {
		return nil, fmt.Errorf("client: crNewCDPSession returned %T, expected *CDPSession", result)
	}
	return session, nil
}

// BackgroundPages lists the extension background pages of this context.
func (bc *ChromiumBrowserContext) BackgroundPages(ctx context.Context) ([]*Page, error) {
	result, err := bc.Channel().SendReturnAsDict(ctx, "crBackgroundPages", nil)
	if err != nil {
		return nil, err
	}
	raw, _ := result["backgroundPages"].([]any)
	pages := make([]*Page, 0, len(raw))
	for _, item := range raw {
		if page, ok := item.(*Page); ok {
			pages = append(pages, page)
		}
	}
	return pages, nil
}
