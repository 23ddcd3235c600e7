package rpc

import "context"

// Initialize performs the root handshake and returns the driver's top-level
// object proxy.
func (c *Connection) Initialize(ctx context.Context) (any, error) {
	result, err := c.root.channel.Send(ctx, "initialize", map[string]any{
		"sdkLanguage": sdkLanguage,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
