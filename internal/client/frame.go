package client

import (
	"context"

	"github.com/pipewright/pipewright/internal/rpc"
)

// Frame is one frame in a page's frame tree.
type Frame struct {
	*rpc.ChannelOwner

	page *Page
}

func newFrame(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	f := &Frame{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	f.Bind(f)
	return f
}

func (f *Frame) Page() *Page {
	return f.page
}

func (f *Frame) Name() string {
	return f.InitializerString("name")
}

func (f *Frame) URL() string {
	return f.InitializerString("url")
}

func (f *Frame) Title(ctx context.Context) (string, error) {
	result, err := f.Channel().Send(ctx, "title", nil)
	if err != nil {
		return "", err
	}
	title, _ := result.(string)
	return title, nil
}

func (f *Frame) Goto(ctx context.Context, url string, options map[string]any) (*Response, error) {
	params := map[string]any{"url": url}
	for k, v := range options {
		params[k] = v
	}
	result, err := f.Channel().Send(ctx, "goto", params)
	if err != nil {
		return nil, err
	}
	response, _ := result.(*Response)
	return response, nil
}

func (f *Frame) Click(ctx context.Context, selector string, options map[string]any) error {
	params := map[string]any{"selector": selector}
	for k, v := range options {
		params[k] = v
	}
	_, err := f.Channel().Send(ctx, "click", params)
	return err
}

// QuerySelector resolves selector to an element handle, nil when nothing
// matches.
func (f *Frame) QuerySelector(ctx context.Context, selector string) (*ElementHandle, error) {
	result, err := f.Channel().Send(ctx, "querySelector", map[string]any{"selector": selector})
	if err != nil {
		return nil, err
	}
	handle, _ := result.(*ElementHandle)
	return handle, nil
}
