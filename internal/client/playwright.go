package client

import "github.com/pipewright/pipewright/internal/rpc"

// Playwright is the driver's top-level object: entry points to the browser
// flavors and the selectors registry.
type Playwright struct {
	*rpc.ChannelOwner

	Chromium  *BrowserType
	Firefox   *BrowserType
	WebKit    *BrowserType
	Selectors *Selectors
}

func newPlaywright(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	p := &Playwright{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	p.Chromium, _ = initializer["chromium"].(*BrowserType)
	p.Firefox, _ = initializer["firefox"].(*BrowserType)
	p.WebKit, _ = initializer["webkit"].(*BrowserType)
	p.Selectors, _ = initializer["selectors"].(*Selectors)
	p.Bind(p)
	return p
}
