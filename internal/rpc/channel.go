package rpc

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Channel is the per-object RPC stub. Every call it issues is tagged with
// its owner's guid; the connection correlates the response back.
type Channel struct {
	conn  *Connection
	owner *ChannelOwner
}

// GUID returns the owning object's identifier.
func (ch *Channel) GUID() string {
	return ch.owner.guid
}

// Send issues one call and returns its decoded result. A result object with
// exactly one key is unwrapped to that key's value; zero or more than one
// key passes through unchanged. Call sites depend on this convention.
func (ch *Channel) Send(ctx context.Context, method string, params map[string]any) (any, error) {
	result, err := ch.innerSend(ctx, method, params)
	if err != nil {
		return nil, err
	}
	return unwrapSingleKey(result), nil
}

// SendReturnAsDict issues one call and returns the raw result map.
func (ch *Channel) SendReturnAsDict(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	result, err := ch.innerSend(ctx, method, params)
	if err != nil {
		return nil, err
	}
	m, _ := result.(map[string]any)
	return m, nil
}

// SendNoReply issues a fire-and-forget call. The driver's eventual response
// is discarded, errors included; used for reporting-style calls that may
// legitimately fail after the target closes.
func (ch *Channel) SendNoReply(method string, params map[string]any) {
	if _, err := ch.conn.sendMessageToServer(ch.owner, method, params, true); err != nil {
		log.Debug().Err(err).Str("guid", ch.owner.guid).Str("method", method).Msg("rpc: no-reply send failed")
	}
}

func (ch *Channel) innerSend(ctx context.Context, method string, params map[string]any) (any, error) {
	if err := ch.conn.takeListenerError(); err != nil {
		return nil, err
	}
	cb, err := ch.conn.sendMessageToServer(ch.owner, method, params, false)
	if err != nil {
		return nil, err
	}
	return cb.Await(ctx)
}

func unwrapSingleKey(result any) any {
	m, ok := result.(map[string]any)
	if !ok || len(m) != 1 {
		return result
	}
	for _, v := range m {
		return v
	}
	return nil
}
