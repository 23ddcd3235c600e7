package client

import (
	"context"

	"github.com/pipewright/pipewright/internal/rpc"
)

// Request is one network request issued by a page.
type Request struct {
	*rpc.ChannelOwner
}

func newRequest(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	r := &Request{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	r.Bind(r)
	return r
}

func (r *Request) URL() string {
	return r.InitializerString("url")
}

func (r *Request) Method() string {
	return r.InitializerString("method")
}

func (r *Request) ResourceType() string {
	return r.InitializerString("resourceType")
}

// Response returns the matching response once the driver has one, nil while
// the request is still in flight.
func (r *Request) Response(ctx context.Context) (*Response, error) {
	result, err := r.Channel().Send(ctx, "response", nil)
	if err != nil {
		return nil, err
	}
	response, _ := result.(*Response)
	return response, nil
}

// Response is one network response received by a page.
type Response struct {
	*rpc.ChannelOwner

	request *Request
}

func newResponse(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	r := &Response{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	r.request, _ = initializer["request"].(*Request)
	r.Bind(r)
	return r
}

func (r *Response) URL() string {
	return r.InitializerString("url")
}

func (r *Response) Status() int {
	status, _ := r.Initializer()["status"].(float64)
	return int(status)
}

func (r *Response) StatusText() string {
	return r.InitializerString("statusText")
}

func (r *Response) Request() *Request {
	return r.request
}

func (r *Response) OK() bool {
	status := r.Status()
	return status == 0 || (status >= 200 && status <= 299)
}

// Route is an intercepted request awaiting a verdict.
type Route struct {
	*rpc.ChannelOwner

	request *Request
}

func newRoute(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	r := &Route{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	r.request, _ = initializer["request"].(*Request)
	r.Bind(r)
	return r
}

func (r *Route) Request() *Request {
	return r.request
}

// Continue lets the request through, optionally overriding parts of it.
func (r *Route) Continue(ctx context.Context, overrides map[string]any) error {
	_, err := r.Channel().Send(ctx, "continue", overrides)
	return err
}

// Abort fails the request with errorCode ("" means the driver default).
func (r *Route) Abort(ctx context.Context, errorCode string) error {
	params := map[string]any{}
	if errorCode != "" {
		params["errorCode"] = errorCode
	}
	_, err := r.Channel().Send(ctx, "abort", params)
	return err
}

// Fulfill answers the request without hitting the network.
func (r *Route) Fulfill(ctx context.Context, response map[string]any) error {
	_, err := r.Channel().Send(ctx, "fulfill", response)
	return err
}

// WebSocket mirrors one websocket opened by a page.
type WebSocket struct {
	*rpc.ChannelOwner
}

func newWebSocket(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	ws := &WebSocket{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	ws.Bind(ws)
	return ws
}

func (ws *WebSocket) URL() string {
	return ws.InitializerString("url")
}
