package client

import (
	"context"
	"fmt"

	"github.com/pipewright/pipewright/internal/rpc"
)

// BrowserType is one launchable browser flavor (chromium, firefox, webkit).
type BrowserType struct {
	*rpc.ChannelOwner
}

func newBrowserType(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	bt := &BrowserType{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	bt.Bind(bt)
	return bt
}

func (bt *BrowserType) Name() string {
	return bt.InitializerString("name")
}

func (bt *BrowserType) ExecutablePath() string {
	return bt.InitializerString("executablePath")
}

// Launch starts a browser instance. Options pass through to the driver
// untouched.
func (bt *BrowserType) Launch(ctx context.Context, options map[string]any) (*Browser, error) {
	result, err := bt.Channel().Send(ctx, "launch", options)
	if err != nil {
		return nil, err
	}
	browser, ok := result.(*Browser)
	if !ok {
		return nil, fmt.Errorf("client: launch returned %T, expected *Browser", result)
	}
	return browser, nil
}
