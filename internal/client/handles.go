package client

import (
	"context"

	"github.com/pipewright/pipewright/internal/rpc"
)

// JSHandle references a JavaScript value living in the page.
type JSHandle struct {
	*rpc.ChannelOwner
}

func newJSHandle(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	h := &JSHandle{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}
	h.Bind(h)
	return h
}

func (h *JSHandle) Preview() string {
	return h.InitializerString("preview")
}

// Evaluate runs expression with this handle as its argument. Values cross
// the wire as driver-defined JSON; the client does not interpret them.
func (h *JSHandle) Evaluate(ctx context.Context, expression string, arg any) (any, error) {
	return h.Channel().Send(ctx, "evaluateExpression", map[string]any{
		"expression": expression,
		"arg":        arg,
	})
}

// EvaluateHandle is Evaluate returning a handle to the result instead of its
// value.
func (h *JSHandle) EvaluateHandle(ctx context.Context, expression string, arg any) (*JSHandle, error) {
	result, err := h.Channel().Send(ctx, "evaluateExpressionHandle", map[string]any{
		"expression": expression,
		"arg":        arg,
	})
	if err != nil {
		return nil, err
	}
	out, _ := result.(*JSHandle)
	return out, nil
}

// Dispose releases the remote value.
func (h *JSHandle) Dispose(ctx context.Context) error {
	_, err := h.Channel().Send(ctx, "dispose", nil)
	return err
}

// ElementHandle is a JSHandle that points at a DOM element.
type ElementHandle struct {
	JSHandle
}

func newElementHandle(parent *rpc.ChannelOwner, objType, guid string, initializer map[string]any) any {
	h := &ElementHandle{JSHandle: JSHandle{ChannelOwner: rpc.NewChannelOwner(parent, objType, guid, initializer)}}
	h.Bind(h)
	return h
}

func (h *ElementHandle) Click(ctx context.Context, options map[string]any) error {
	_, err := h.Channel().Send(ctx, "click", options)
	return err
}

func (h *ElementHandle) TextContent(ctx context.Context) (string, error) {
	result, err := h.Channel().Send(ctx, "textContent", nil)
	if err != nil {
		return "", err
	}
	text, _ := result.(string)
	return text, nil
}
